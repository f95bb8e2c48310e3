package push

import (
	"context"
	"fmt"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/npezzotti/go-chatsync/internal/database"
)

const defaultTTL = 60

// Sender delivers one encrypted payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub database.PushSubscription, payload []byte) error
}

// VAPIDKeys identifies this server to push services.
type VAPIDKeys struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

type WebPushSender struct {
	keys   VAPIDKeys
	client *http.Client
}

func NewWebPushSender(keys VAPIDKeys, client *http.Client) *WebPushSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebPushSender{keys: keys, client: client}
}

func (s *WebPushSender) Send(ctx context.Context, sub database.PushSubscription, payload []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.keys.Subject,
		VAPIDPublicKey:  s.keys.PublicKey,
		VAPIDPrivateKey: s.keys.PrivateKey,
		TTL:             defaultTTL,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("push service returned %s", resp.Status)
	}

	return nil
}

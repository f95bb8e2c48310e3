// Package push fans new messages out to the Web Push subscriptions of a
// chat's participants. Delivery is best effort: failures are logged and
// counted, never retried and never reported to the sender.
package push

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/npezzotti/go-chatsync/internal/chaterr"
	"github.com/npezzotti/go-chatsync/internal/database"
	"github.com/npezzotti/go-chatsync/internal/stats"
	"github.com/npezzotti/go-chatsync/internal/types"
	"golang.org/x/sync/errgroup"
)

const (
	maxConcurrentSends = 8
	dispatchTimeout    = 30 * time.Second
	maxTitleLen        = 60
)

type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Url   string `json:"url"`
}

func NewPayload(msg types.Message) Payload {
	title := "[" + string(msg.Type) + "]"
	if msg.Type == types.KindText {
		title = truncate(msg.Content, maxTitleLen)
		if title == "" {
			title = "New message"
		}
	}

	return Payload{
		Title: title,
		Body:  "from @" + msg.SenderUsername,
		Url:   "/",
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

type Dispatcher struct {
	log    *log.Logger
	db     database.GoChatRepository
	sender Sender
	stats  stats.StatsProvider

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(logger *log.Logger, db database.GoChatRepository, sender Sender, su stats.StatsProvider) *Dispatcher {
	su.RegisterCounter("PushDeliveryFailures")

	return &Dispatcher{
		log:    logger,
		db:     db,
		sender: sender,
		stats:  su,
	}
}

// Notify schedules delivery of msg to every participant except its sender
// and returns without waiting. It does nothing once Wait has been called.
func (d *Dispatcher) Notify(msg types.Message) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		d.dispatch(ctx, msg)
	}()
}

func (d *Dispatcher) dispatch(ctx context.Context, msg types.Message) {
	participants, err := d.db.ListParticipantIds(ctx, msg.ChatId)
	if err != nil {
		d.log.Println("ListParticipantIds:", err)
		return
	}

	payload, err := json.Marshal(NewPayload(msg))
	if err != nil {
		d.log.Println("failed to encode push payload:", err)
		return
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentSends)

	for _, userId := range participants {
		if userId == msg.SenderId {
			continue
		}

		subs, err := d.db.ListPushSubscriptions(ctx, userId)
		if err != nil {
			d.log.Println("ListPushSubscriptions:", err)
			continue
		}

		for _, sub := range subs {
			g.Go(func() error {
				if err := d.sender.Send(ctx, sub, payload); err != nil {
					d.log.Printf("push to user %d: %v", sub.UserId, chaterr.E("Notify", chaterr.KindDelivery, err))
					d.stats.Incr("PushDeliveryFailures")
				}
				return nil
			})
		}
	}

	g.Wait()
}

// Wait stops accepting new notifications and blocks until in-flight
// deliveries finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

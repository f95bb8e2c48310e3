package config

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DevSigningSecret is the signing secret used in dev mode when none is
// configured. It is public, so NewConfig refuses it outside dev mode.
const DevSigningSecret = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type Config struct {
	Dev              bool
	DatabaseDSN      string
	ServerAddr       string
	SigningKey       []byte
	AllowedOrigins   []string
	PublicURL        string
	UploadDir        string
	VAPIDPublicKey   string
	VAPIDPrivateKey  string
	VAPIDSubject     string
	MessagePageLimit int
}

// Params holds the raw values collected from flags and the environment.
type Params struct {
	Dev              bool
	ServerAddr       string
	DatabaseDSN      string
	SigningSecret    string
	AllowedOrigins   []string
	PublicURL        string
	UploadDir        string
	VAPIDPublicKey   string
	VAPIDPrivateKey  string
	VAPIDSubject     string
	MessagePageLimit int
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("signing secret is empty")
	}
	return key, nil
}

func NewConfig(p Params) (*Config, error) {
	if p.ServerAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if p.DatabaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if p.SigningSecret == "" && p.Dev {
		p.SigningSecret = DevSigningSecret
	}
	if p.SigningSecret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	if p.SigningSecret == DevSigningSecret && !p.Dev {
		return nil, fmt.Errorf("the dev signing secret is only allowed in dev mode")
	}
	if p.UploadDir == "" {
		return nil, fmt.Errorf("upload directory cannot be empty")
	}
	if p.MessagePageLimit <= 0 {
		return nil, fmt.Errorf("message page limit must be positive, got %d", p.MessagePageLimit)
	}
	if (p.VAPIDPublicKey == "") != (p.VAPIDPrivateKey == "") {
		return nil, fmt.Errorf("VAPID public and private keys must be set together")
	}

	// Decode the base64 encoded signing secret
	signingKey, err := decodeSigningSecret(p.SigningSecret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		Dev:              p.Dev,
		DatabaseDSN:      p.DatabaseDSN,
		ServerAddr:       p.ServerAddr,
		SigningKey:       signingKey,
		AllowedOrigins:   p.AllowedOrigins,
		PublicURL:        strings.TrimRight(p.PublicURL, "/"),
		UploadDir:        p.UploadDir,
		VAPIDPublicKey:   p.VAPIDPublicKey,
		VAPIDPrivateKey:  p.VAPIDPrivateKey,
		VAPIDSubject:     p.VAPIDSubject,
		MessagePageLimit: p.MessagePageLimit,
	}, nil
}

// PushEnabled reports whether web push delivery is configured.
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

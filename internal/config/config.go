// Package config loads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Netflix/go-env"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// MaxRoomNameLength matches the size of messages.conversation_id, where public-room
// messages are stored under the room name.
const MaxRoomNameLength = 64

const (
	// Websocket pump timings.
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxMessageSize = 64 * 1024

	// Key derivation parameters shared with clients.
	E2EIterations = 100000
	E2EKeyLength  = 32
)

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR,default=:8080"`
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`
	RedisChannel  string `env:"REDIS_CHANNEL,default=chat:events"`

	JWTSecret string        `env:"JWT_SECRET,required=true"`
	JWTIssuer string        `env:"JWT_ISSUER,default=friendchat"`
	JWTTTL    time.Duration `env:"JWT_TTL,default=72h"`

	PublicRoom     string `env:"PUBLIC_ROOM,default=public"`
	FrontendURL    string `env:"FRONTEND_URL"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`
	PresenceShards int    `env:"PRESENCE_SHARDS,default=32"`
	SendBufferSize int    `env:"SEND_BUFFER_SIZE,default=256"`
	E2EEnabled     bool   `env:"E2E_ENABLED,default=true"`
	NodeID         string `env:"NODE_ID"`

	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS,default=100"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW,default=15m"`
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if cfg.NodeID == "" {
		cfg.NodeID = uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var problems []error
	if c.PresenceShards <= 0 {
		problems = append(problems, fmt.Errorf("PRESENCE_SHARDS must be positive, got %d", c.PresenceShards))
	}
	if c.SendBufferSize <= 0 {
		problems = append(problems, fmt.Errorf("SEND_BUFFER_SIZE must be positive, got %d", c.SendBufferSize))
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		problems = append(problems, errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive"))
	}
	switch {
	case c.PublicRoom == "":
		problems = append(problems, errors.New("PUBLIC_ROOM must not be empty"))
	case len(c.PublicRoom) > MaxRoomNameLength:
		problems = append(problems, fmt.Errorf("PUBLIC_ROOM must be at most %d bytes, got %d", MaxRoomNameLength, len(c.PublicRoom)))
	}
	return errors.Join(problems...)
}

package internal

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

type Config struct {
	Host           string `env:"HOST,default=0.0.0.0"`
	Port           int    `env:"PORT,default=6667"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`
	TokenSecret    string `env:"TOKEN_SECRET,required=true"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	MessagesFile   string `env:"MESSAGES_FILE,default=messages.json"`

	MaxMessages     int           `env:"MAX_MESSAGES,default=100"`
	MessageLifespan time.Duration `env:"MESSAGE_LIFESPAN,default=15h"`
	MaxContentLen   int           `env:"MAX_CONTENT_LENGTH,default=512"`
	MaxPublicRooms  int           `env:"MAX_PUBLIC_ROOMS,default=5"`
	MailboxCapacity int           `env:"MAILBOX_CAPACITY,default=256"`

	IdleTimeout        time.Duration `env:"IDLE_TIMEOUT,default=30s"`
	SweepInterval      time.Duration `env:"SWEEP_INTERVAL,default=10s"`
	DeliveryTimeout    time.Duration `env:"DELIVERY_TIMEOUT,default=1s"`
	CheckpointInterval time.Duration `env:"CHECKPOINT_INTERVAL,default=5s"`
	StatsInterval      time.Duration `env:"STATS_INTERVAL,default=30s"`
	AuthTokenDuration  time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`
}

// CharacterRune enforces that the masking replacement is a single rune.
func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}

// NewLogger builds the process logger at the configured level.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

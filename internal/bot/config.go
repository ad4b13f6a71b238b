package bot

import (
	"time"

	"github.com/example/leitner/internal/review"
)

// BotConfig represents the configuration for the bot
type BotConfig struct {
	// Chat allowed to use the bot; zero accepts any chat
	OwnerChatID int64
	// How long an incorrect pairing stays on screen
	MatchRetryDelay time.Duration
	// Pause on the batch summary before the next batch starts
	BatchAdvanceDelay time.Duration
	// Long polling timeout in seconds
	UpdateTimeout int
	// Maximum word buttons shown for a paragraph
	MaxWordButtons int
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		MatchRetryDelay:   review.MatchRetryDelay,
		BatchAdvanceDelay: 4 * time.Second,
		UpdateTimeout:     60,
		MaxWordButtons:    80,
	}
}

package bot

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/leitner/internal/ai"
	"github.com/example/leitner/internal/backup"
	"github.com/example/leitner/internal/database"
	"github.com/example/leitner/internal/excel"
	"github.com/example/leitner/internal/ingest"
	"github.com/example/leitner/internal/logger"
	"github.com/example/leitner/internal/review"
	"github.com/example/leitner/internal/spaced_repetition"
)

// telegramAPI is the subset of the Telegram client the bot uses
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// RootExplainer looks up the origin of a term
type RootExplainer interface {
	ExplainRoot(ctx context.Context, term string) (string, error)
}

// Deps are the services the bot drives
type Deps struct {
	Store    *database.Store
	Leitner  *spaced_repetition.Leitner
	Pipeline *ingest.Pipeline
	Roots    RootExplainer // nil when no analysis service is configured
	Backup   *backup.Service
	Importer *excel.Importer
	Log      *logger.Logger
}

// chatState holds the sessions of one chat
type chatState struct {
	mu sync.Mutex

	review    *review.Session
	reviewMsg int

	paragraphs   *review.ParagraphSession
	paragraphMsg int

	analysing  bool
	pending    *ai.Analysis
	selected   map[int]bool
	previewMsg int
}

// Bot represents a Telegram bot instance
type Bot struct {
	api    telegramAPI
	config *BotConfig
	deps   Deps
	log    *logger.Logger
	client *http.Client

	mu    sync.Mutex
	chats map[int64]*chatState
}

// New creates a new bot instance
func New(token string, config *BotConfig, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	deps.Log.Info("Authorized on account", "username", api.Self.UserName)
	return newBot(api, config, deps), nil
}

func newBot(api telegramAPI, config *BotConfig, deps Deps) *Bot {
	if config == nil {
		config = DefaultConfig()
	}
	return &Bot{
		api:    api,
		config: config,
		deps:   deps,
		log:    deps.Log,
		client: &http.Client{Timeout: 30 * time.Second},
		chats:  make(map[int64]*chatState),
	}
}

// Start starts the bot and blocks until the context is cancelled
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.config.UpdateTimeout

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

// Stop stops receiving updates and tears down open sessions
func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()

	b.mu.Lock()
	chats := make([]*chatState, 0, len(b.chats))
	for _, chat := range b.chats {
		chats = append(chats, chat)
	}
	b.mu.Unlock()

	for _, chat := range chats {
		chat.mu.Lock()
		if chat.review != nil {
			chat.review.Stop()
		}
		chat.mu.Unlock()
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Panic while handling update", "update_id", update.UpdateID, "panic", r)
		}
	}()

	switch {
	case update.Message != nil:
		msg := update.Message
		if !b.authorized(msg.Chat.ID) {
			b.log.Warn("Ignoring message from unknown chat", "chat_id", msg.Chat.ID)
			return
		}
		switch {
		case msg.IsCommand():
			b.HandleCommand(ctx, msg)
		case msg.Document != nil:
			b.handleDocument(ctx, msg)
		case strings.TrimSpace(msg.Text) != "":
			b.handleText(ctx, msg.Chat.ID, msg.Text)
		}
	case update.CallbackQuery != nil:
		query := update.CallbackQuery
		if query.Message == nil || !b.authorized(query.Message.Chat.ID) {
			return
		}
		b.HandleCallback(ctx, query)
	}
}

func (b *Bot) authorized(chatID int64) bool {
	return b.config.OwnerChatID == 0 || chatID == b.config.OwnerChatID
}

// chat returns the state for a chat, creating it on first use
func (b *Bot) chat(chatID int64) *chatState {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.chats[chatID]
	if !ok {
		state = &chatState{}
		b.chats[chatID] = state
	}
	return state
}

// SendReminders notifies the owner about due items
func (b *Bot) SendReminders(count int) error {
	if b.config.OwnerChatID == 0 {
		return fmt.Errorf("no owner chat configured for reminders")
	}
	text := fmt.Sprintf("🔔 You have %d item(s) ready for review.", count)
	_, err := b.sendMessage(b.config.OwnerChatID, withKeyboard(text, MainMenuButtons()))
	return err
}

// sendMessage sends a screen as a new message
func (b *Bot) sendMessage(chatID int64, s screen) (int, error) {
	msg := tgbotapi.NewMessage(chatID, s.text)
	if s.keyboard != nil {
		msg.ReplyMarkup = *s.keyboard
	}
	sent, err := b.api.Send(msg)
	if err != nil {
		b.log.Error("Failed to send message", "chat_id", chatID, "error", err)
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return sent.MessageID, nil
}

func (b *Bot) reply(chatID int64, text string) {
	_, _ = b.sendMessage(chatID, screen{text: text})
}

// editMessage replaces the body and keyboard of a message
func (b *Bot) editMessage(chatID int64, messageID int, s screen) error {
	var edit tgbotapi.Chattable
	if s.keyboard != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, s.text, *s.keyboard)
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, s.text)
	}
	if _, err := b.api.Request(edit); err != nil {
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		b.log.Error("Failed to edit message", "chat_id", chatID, "message_id", messageID, "error", err)
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// show edits the message when there is one and sends a new one otherwise
func (b *Bot) show(chatID int64, messageID *int, s screen) {
	if *messageID != 0 {
		if err := b.editMessage(chatID, *messageID, s); err == nil {
			return
		}
	}
	if id, err := b.sendMessage(chatID, s); err == nil {
		*messageID = id
	}
}

func (b *Bot) answerCallback(queryID, text string) {
	callback := tgbotapi.NewCallback(queryID, text)
	if _, err := b.api.Request(callback); err != nil {
		b.log.Debug("Failed to answer callback", "error", err)
	}
}

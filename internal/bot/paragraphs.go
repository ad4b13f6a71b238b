package bot

import (
	"context"

	"github.com/example/leitner/internal/review"
)

func (b *Bot) startParagraphs(ctx context.Context, chatID int64) {
	chat := b.chat(chatID)
	chat.mu.Lock()
	defer chat.mu.Unlock()

	s := review.NewParagraphSession(b.deps.Store.Paragraphs, b.deps.Leitner, b.log.With("chat_id", chatID))
	if _, err := s.Start(ctx); err != nil {
		b.log.Error("Failed to start paragraph review", "chat_id", chatID, "error", err)
		b.reply(chatID, userError(err))
		return
	}
	chat.paragraphs = s
	chat.paragraphMsg = 0
	b.show(chatID, &chat.paragraphMsg, paragraphScreen(s, b.config.MaxWordButtons))
}

func (b *Bot) handleParagraphCallback(ctx context.Context, chatID int64, messageID int, cb callback) string {
	chat := b.chat(chatID)
	chat.mu.Lock()
	defer chat.mu.Unlock()

	s := chat.paragraphs
	if s == nil || chat.paragraphMsg != messageID {
		return "This review has ended. Use /paragraphs to start again."
	}

	var toast string
	switch cb.action {
	case "w":
		view, err := s.Current()
		if err != nil || cb.arg < 0 || int(cb.arg) >= len(view.Words) {
			return ""
		}
		if err := s.ToggleWord(view.Words[cb.arg].Word); err != nil {
			return reviewErrorText(err)
		}
	case "r":
		if _, err := s.Reveal(); err != nil {
			return reviewErrorText(err)
		}
	case "n":
		outcome, err := s.Next(ctx)
		if err != nil {
			return userError(err)
		}
		if outcome.Successful {
			toast = "✅ Saved"
		} else {
			toast = "🔁 Saved, it comes back sooner"
		}
	}
	b.show(chatID, &chat.paragraphMsg, paragraphScreen(s, b.config.MaxWordButtons))
	return toast
}

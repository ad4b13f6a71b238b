package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/leitner/internal/review"
)

func (b *Bot) startReview(ctx context.Context, chatID int64) {
	chat := b.chat(chatID)
	chat.mu.Lock()
	defer chat.mu.Unlock()

	if chat.review != nil {
		chat.review.Stop()
	}
	s := review.NewSession(review.NewVocabularyDeck(b.deps.Store.Vocabulary), b.deps.Leitner, b.log.With("chat_id", chatID))
	if err := s.Start(ctx); err != nil {
		b.log.Error("Failed to start review", "chat_id", chatID, "error", err)
		b.reply(chatID, userError(err))
		return
	}
	chat.review = s
	chat.reviewMsg = 0
	b.show(chatID, &chat.reviewMsg, reviewScreen(s))
}

func (b *Bot) handleReviewCallback(ctx context.Context, chatID int64, messageID int, cb callback) string {
	chat := b.chat(chatID)
	chat.mu.Lock()
	defer chat.mu.Unlock()

	s := chat.review
	if s == nil || chat.reviewMsg != messageID {
		return "This review has ended. Use /review to start again."
	}
	if cb.action == "x" {
		s.Stop()
		chat.review = nil
		_ = b.editMessage(chatID, messageID, screen{text: "⏹ Review stopped."})
		return ""
	}

	toast, err := b.applyReviewAction(ctx, chatID, s, cb)
	if err != nil {
		toast = reviewErrorText(err)
	}
	b.show(chatID, &chat.reviewMsg, reviewScreen(s))
	return toast
}

func (b *Bot) applyReviewAction(ctx context.Context, chatID int64, s *review.Session, cb callback) (string, error) {
	switch cb.action {
	case noop:
		return "", nil
	case "t", "m":
		var res *review.MatchResult
		var err error
		if cb.action == "t" {
			res, err = s.SelectTerm(cb.arg)
		} else {
			res, err = s.SelectTranslation(cb.arg)
		}
		if err != nil {
			return "", err
		}
		return b.afterMatch(chatID, s, res), nil
	case "l":
		res, err := s.PickLetter(ctx, int(cb.arg))
		return b.afterLetter(chatID, s, res), err
	case "h":
		res, err := s.Hint(ctx)
		return b.afterLetter(chatID, s, res), err
	case "u":
		return "", s.Undo()
	case "c":
		return "", s.Clear()
	case "s":
		res, err := s.RetrySave(ctx)
		return b.afterLetter(chatID, s, res), err
	case "n":
		return "", s.NextBatch()
	}
	return "", review.ErrInvalidSelection
}

func (b *Bot) afterMatch(chatID int64, s *review.Session, res *review.MatchResult) string {
	if !res.Evaluated {
		return ""
	}
	if res.Correct {
		if res.StageComplete {
			return "✅ All matched, now spell them"
		}
		return "✅"
	}
	b.resumeLater(chatID, s, b.config.MatchRetryDelay, res.Continuation)
	return "❌ Not a pair"
}

func (b *Bot) afterLetter(chatID int64, s *review.Session, res *review.LetterResult) string {
	if res == nil {
		return ""
	}
	if res.BatchComplete {
		if c, err := s.AdvanceLater(); err == nil {
			b.resumeLater(chatID, s, b.config.BatchAdvanceDelay, c)
		}
	}
	if !res.Finished {
		return ""
	}
	if !res.Passed {
		e := res.Evaluation
		switch {
		case e.TookTooLong:
			return "⌛ Too slow, this word comes back later"
		case e.Mistakes > e.MaxMistakes:
			return fmt.Sprintf("❌ %d mistakes, this word comes back later", e.Mistakes)
		}
		return "💡 Too many hints, this word comes back later"
	}
	return "✅ Correct"
}

// resumeLater applies a continuation after a delay and redraws the review
func (b *Bot) resumeLater(chatID int64, s *review.Session, delay time.Duration, c *review.Continuation) {
	if c == nil {
		return
	}
	time.AfterFunc(delay, func() {
		chat := b.chat(chatID)
		chat.mu.Lock()
		defer chat.mu.Unlock()
		if chat.review != s || !c.Resume() {
			return
		}
		b.show(chatID, &chat.reviewMsg, reviewScreen(s))
	})
}

func reviewErrorText(err error) string {
	switch {
	case errors.Is(err, review.ErrWrongState):
		return "That button is no longer active."
	case errors.Is(err, review.ErrInvalidSelection):
		return ""
	case errors.Is(err, review.ErrAwaitingSave):
		return "⚠️ Save the previous result first."
	}
	return userError(err)
}

package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/leitner/internal/ai"
	"github.com/example/leitner/internal/database"
	"github.com/example/leitner/internal/ingest"
	"github.com/example/leitner/internal/review"
)

// Callback data prefixes
const (
	prefixReview    = "rv"
	prefixParagraph = "pg"
	prefixAdd       = "ad"
	prefixClear     = "cl"
)

const noop = "noop"

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// MainMenuButtons returns the buttons shown with /start
func MainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{
			{Text: "🧠 Review words", CallbackData: "menu:review"},
			{Text: "📖 Review paragraphs", CallbackData: "menu:paragraphs"},
		},
		{
			{Text: "📚 Word list", CallbackData: "menu:words"},
		},
	}
}

func callbackData(prefix, action string, arg ...int64) string {
	if len(arg) == 0 {
		return prefix + ":" + action
	}
	return fmt.Sprintf("%s:%s:%d", prefix, action, arg[0])
}

type callback struct {
	prefix string
	action string
	arg    int64
	hasArg bool
}

func parseCallback(data string) (callback, bool) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return callback{}, false
	}
	cb := callback{prefix: parts[0], action: parts[1]}
	if len(parts) == 3 {
		arg, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return callback{}, false
		}
		cb.arg = arg
		cb.hasArg = true
	}
	return cb, true
}

// screen is a message body with an optional inline keyboard
type screen struct {
	text     string
	keyboard *tgbotapi.InlineKeyboardMarkup
}

func withKeyboard(text string, buttons [][]MenuButton) screen {
	kb := createKeyboard(buttons)
	return screen{text: text, keyboard: &kb}
}

func matchLabel(e review.MatchEntry) string {
	switch e.Status {
	case review.Selected:
		return "👉 " + e.Text
	case review.Correct:
		return "✅ " + e.Text
	case review.Incorrect:
		return "❌ " + e.Text
	}
	return e.Text
}

func matchCallback(action string, e review.MatchEntry) string {
	if e.Status == review.Correct || e.Status == review.Incorrect {
		return callbackData(prefixReview, noop)
	}
	return callbackData(prefixReview, action, e.ID)
}

// reviewScreen renders the word review session
func reviewScreen(s *review.Session) screen {
	switch s.State() {
	case review.NoItemsDue:
		return screen{text: "🎉 Nothing to review right now. Send me a paragraph to learn new words."}
	case review.SessionComplete:
		return screen{text: "🏁 Hurray, nothing more to review!"}
	case review.Matching:
		view, err := s.Matching()
		if err != nil {
			return screen{text: "⚠️ " + err.Error()}
		}
		var rows [][]MenuButton
		for i := range view.Terms {
			rows = append(rows, []MenuButton{
				{Text: matchLabel(view.Terms[i]), CallbackData: matchCallback("t", view.Terms[i])},
				{Text: matchLabel(view.Translations[i]), CallbackData: matchCallback("m", view.Translations[i])},
			})
		}
		rows = append(rows, []MenuButton{{Text: "⏹ Stop", CallbackData: callbackData(prefixReview, "x")}})
		return withKeyboard("🔗 Match each new word with its translation.", rows)
	case review.Letters:
		return letterScreen(s)
	case review.BatchComplete:
		r := s.Report()
		text := fmt.Sprintf("📦 Batch %d of %d done\n✅ %d of %d remembered", r.Batch, r.Total, r.Correct, r.Recorded)
		label := "▶ Next batch"
		if r.Batch == r.Total {
			label = "🏁 Finish"
		}
		return withKeyboard(text, [][]MenuButton{{{Text: label, CallbackData: callbackData(prefixReview, "n")}}})
	}
	return screen{text: "⏳ Loading..."}
}

func letterScreen(s *review.Session) screen {
	view, err := s.Letters()
	if err != nil {
		return screen{text: "⚠️ " + err.Error()}
	}

	built := []rune(view.Built)
	slots := make([]string, view.Length)
	for i := range slots {
		if i < len(built) {
			slots[i] = string(built[i])
		} else {
			slots[i] = "_"
		}
	}
	text := fmt.Sprintf("🔤 %s\n\n%s\n\n💡 Hints %d/%d · 📚 Words left %d",
		view.Translation, strings.Join(slots, " "), view.Hints, view.MaxHints, view.Remaining)

	if s.AwaitingSave() {
		return withKeyboard(text+"\n\n⚠️ The result could not be saved.", [][]MenuButton{
			{{Text: "🔁 Retry save", CallbackData: callbackData(prefixReview, "s")}},
		})
	}

	var rows [][]MenuButton
	var row []MenuButton
	for i, r := range view.Pool {
		row = append(row, MenuButton{Text: string(r), CallbackData: callbackData(prefixReview, "l", int64(i))})
		if len(row) == 6 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []MenuButton{
		{Text: "↩️ Undo", CallbackData: callbackData(prefixReview, "u")},
		{Text: "🔄 Clear", CallbackData: callbackData(prefixReview, "c")},
		{Text: "💡 Hint", CallbackData: callbackData(prefixReview, "h")},
	})
	rows = append(rows, []MenuButton{{Text: "⏹ Stop", CallbackData: callbackData(prefixReview, "x")}})
	return withKeyboard(text, rows)
}

// paragraphScreen renders the paragraph review session
func paragraphScreen(s *review.ParagraphSession, maxButtons int) screen {
	if s.Done() {
		return screen{text: "🎉 Hurray, nothing more to review!"}
	}
	view, err := s.Current()
	if err != nil {
		return screen{text: "⚠️ " + err.Error()}
	}

	header := fmt.Sprintf("📖 %d of %d\n\n", view.Position, view.Total)
	if view.ShowingTranslation {
		var b strings.Builder
		b.WriteString(header)
		b.WriteString(view.Paragraph.Translation.Text)
		if len(view.Paragraph.Translation.Annotations) > 0 {
			b.WriteString("\n\nWord explanations:")
			for _, a := range view.Paragraph.Translation.Annotations {
				fmt.Fprintf(&b, "\n• %s: %s", a.Term, a.Meaning)
			}
		}
		return withKeyboard(b.String(), [][]MenuButton{{
			{Text: "📝 Original", CallbackData: callbackData(prefixParagraph, "r")},
			{Text: "Next ▶", CallbackData: callbackData(prefixParagraph, "n")},
		}})
	}

	var rows [][]MenuButton
	var row []MenuButton
	for i, w := range view.Words {
		if i >= maxButtons {
			break
		}
		label := w.Word
		switch {
		case w.Marked:
			label = "🔴 " + label
		case w.Focus:
			label = "🔵 " + label
		}
		row = append(row, MenuButton{Text: label, CallbackData: callbackData(prefixParagraph, "w", int64(i))})
		if len(row) == 4 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []MenuButton{
		{Text: "👁 Reveal", CallbackData: callbackData(prefixParagraph, "r")},
		{Text: "Next ▶", CallbackData: callbackData(prefixParagraph, "n")},
	})
	return withKeyboard(header+view.Paragraph.Text+"\n\nTap the words you are unsure about.", rows)
}

// previewScreen renders an analysis waiting to be saved
func previewScreen(a *ai.Analysis, selected map[int]bool) screen {
	var b strings.Builder
	fmt.Fprintf(&b, "✍️ %s\n\n🌍 %s\n\nChoose what to learn:", a.CorrectedText, a.Translation)

	var rows [][]MenuButton
	for i, c := range a.Vocabulary() {
		mark := "⬜"
		if selected[i] {
			mark = "✅"
		}
		rows = append(rows, []MenuButton{{
			Text:         fmt.Sprintf("%s %s: %s", mark, c.Term, c.Meaning),
			CallbackData: callbackData(prefixAdd, "t", int64(i)),
		}})
	}
	rows = append(rows, []MenuButton{
		{Text: "💾 Save selected", CallbackData: callbackData(prefixAdd, "s")},
		{Text: "💾 Save all", CallbackData: callbackData(prefixAdd, "a")},
	})
	rows = append(rows, []MenuButton{{Text: "✖ Cancel", CallbackData: callbackData(prefixAdd, "x")}})
	return withKeyboard(b.String(), rows)
}

func ingestSummary(res *ingest.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💾 Paragraph #%d saved\n- Added: %d\n- Already known: %d", res.Paragraph.ID, len(res.Created), len(res.Skipped))
	if len(res.Failed) > 0 {
		fmt.Fprintf(&b, "\n- Failed: %s", strings.Join(res.Failed, ", "))
	}
	return b.String()
}

// userError turns an error into a message for the chat
func userError(err error) string {
	var (
		validation *ingest.ValidationError
		service    *ai.ServiceError
		parse      *ai.ParseError
		notFound   *database.NotFoundError
		duplicate  *database.DuplicateError
	)
	switch {
	case errors.As(err, &validation):
		return "⚠️ " + validation.Error()
	case errors.As(err, &service):
		return "🌐 The language service is unavailable, please try again later."
	case errors.As(err, &parse):
		return "🤖 The language service sent a reply I could not understand."
	case errors.As(err, &notFound):
		return fmt.Sprintf("🔍 No %s with id %d.", notFound.Collection, notFound.ID)
	case errors.As(err, &duplicate):
		return fmt.Sprintf("ℹ️ %q is already in your word list.", duplicate.Term)
	case errors.Is(err, ingest.ErrAnalysisDisabled):
		return "🔌 Text analysis is not configured. Add words with /word instead."
	case errors.Is(err, review.ErrNoHint):
		return "💡 No hint available, undo a letter first."
	}
	return "❌ Something went wrong. Please try again later."
}

package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/leitner/internal/database"
	"github.com/example/leitner/internal/spaced_repetition"
	"github.com/example/leitner/pkg/models"
)

const helpText = `📚 Commands:
/add <text> - analyse a paragraph and pick words to learn (or just send the text)
/word - add words directly, one "word - translation" per line
/review - review due words
/paragraphs - review due paragraphs
/words - word list and statistics
/edit <id> word - translation [- root] - correct a word
/master <id> - mark a word as mastered or bring it back, /master p<id> for a paragraph
/exclude <id> - exclude a paragraph from review or bring it back
/delete <id> - delete a word, /delete p<id> deletes a paragraph
/root <id> - explain where a word comes from
/backup - download a backup, send a .json backup to restore it
/export - download the word list as Excel, send .xlsx or .csv to import
/clear [words|paragraphs] - delete everything, or one collection`

const maxListedWords = 60

// HandleCommand handles bot commands
func (b *Bot) HandleCommand(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	args := strings.TrimSpace(message.CommandArguments())

	switch message.Command() {
	case "start":
		_, _ = b.sendMessage(chatID, withKeyboard("👋 Send me a paragraph in the language you are learning and I will turn it into words to review.", MainMenuButtons()))
	case "help":
		b.reply(chatID, helpText)
	case "add":
		if args == "" {
			b.reply(chatID, "✍️ Send the paragraph after /add, or simply send it as a message.")
			return
		}
		b.handleText(ctx, chatID, args)
	case "word":
		b.handleWordList(ctx, chatID, args)
	case "review":
		b.startReview(ctx, chatID)
	case "paragraphs":
		b.startParagraphs(ctx, chatID)
	case "words":
		b.handleWords(ctx, chatID)
	case "master":
		b.handleMaster(ctx, chatID, args)
	case "exclude":
		b.handleExclude(ctx, chatID, args)
	case "delete":
		b.handleDelete(ctx, chatID, args)
	case "root":
		b.handleRoot(ctx, chatID, args)
	case "backup":
		b.sendBackup(ctx, chatID)
	case "export":
		b.sendExport(ctx, chatID)
	case "edit":
		b.handleEdit(ctx, chatID, args)
	case "clear":
		b.confirmClear(chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help to see the available commands.")
	}
}

// HandleCallback handles inline keyboard presses
func (b *Bot) HandleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	chatID := query.Message.Chat.ID
	messageID := query.Message.MessageID

	cb, ok := parseCallback(query.Data)
	if !ok {
		b.log.Warn("Unknown callback data", "data", query.Data)
		b.answerCallback(query.ID, "")
		return
	}

	var toast string
	switch cb.prefix {
	case "menu":
		b.answerCallback(query.ID, "")
		switch cb.action {
		case "review":
			b.startReview(ctx, chatID)
		case "paragraphs":
			b.startParagraphs(ctx, chatID)
		case "words":
			b.handleWords(ctx, chatID)
		}
		return
	case prefixReview:
		toast = b.handleReviewCallback(ctx, chatID, messageID, cb)
	case prefixParagraph:
		toast = b.handleParagraphCallback(ctx, chatID, messageID, cb)
	case prefixAdd:
		toast = b.handleAddCallback(ctx, chatID, messageID, cb)
	case prefixClear:
		toast = b.handleClear(ctx, chatID, messageID, cb.action)
	}
	b.answerCallback(query.ID, toast)
}

// handleText runs the analysis and shows the result for selection
func (b *Bot) handleText(ctx context.Context, chatID int64, text string) {
	chat := b.chat(chatID)
	chat.mu.Lock()
	if chat.analysing {
		chat.mu.Unlock()
		b.reply(chatID, "⏳ Still working on your previous text.")
		return
	}
	chat.analysing = true
	chat.mu.Unlock()

	msgID, _ := b.sendMessage(chatID, screen{text: "🔎 Analysing..."})
	analysis, err := b.deps.Pipeline.Analyze(ctx, text)

	chat.mu.Lock()
	defer chat.mu.Unlock()
	chat.analysing = false
	if err != nil {
		b.log.Error("Failed to analyse text", "chat_id", chatID, "error", err)
		b.show(chatID, &msgID, screen{text: userError(err)})
		return
	}

	chat.pending = analysis
	chat.selected = make(map[int]bool)
	for i := range analysis.Vocabulary() {
		chat.selected[i] = true
	}
	chat.previewMsg = msgID
	b.show(chatID, &chat.previewMsg, previewScreen(analysis, chat.selected))
}

func (b *Bot) handleAddCallback(ctx context.Context, chatID int64, messageID int, cb callback) string {
	chat := b.chat(chatID)
	chat.mu.Lock()
	defer chat.mu.Unlock()

	if chat.pending == nil || chat.previewMsg != messageID {
		return "This text is no longer pending."
	}
	analysis := chat.pending
	candidates := analysis.Vocabulary()

	switch cb.action {
	case "t":
		i := int(cb.arg)
		if i < 0 || i >= len(candidates) {
			return ""
		}
		chat.selected[i] = !chat.selected[i]
		b.show(chatID, &chat.previewMsg, previewScreen(analysis, chat.selected))
		return ""
	case "x":
		chat.pending = nil
		b.show(chatID, &chat.previewMsg, screen{text: "✖ Discarded."})
		return ""
	}

	var selection []string
	for i, c := range candidates {
		if cb.action == "a" || chat.selected[i] {
			selection = append(selection, c.Term)
		}
	}
	res, err := b.deps.Pipeline.IngestSelected(ctx, analysis, selection)
	if err != nil {
		b.log.Error("Failed to save analysis", "chat_id", chatID, "error", err)
		return userError(err)
	}
	chat.pending = nil
	b.show(chatID, &chat.previewMsg, screen{text: ingestSummary(res)})
	return "💾 Saved"
}

// parseWordLine splits "word - translation"
func parseWordLine(line string) (term, meaning string, ok bool) {
	for _, sep := range []string{" - ", " — ", " – ", ":"} {
		if i := strings.Index(line, sep); i > 0 {
			term = strings.TrimSpace(line[:i])
			meaning = strings.TrimSpace(line[i+len(sep):])
			return term, meaning, term != "" && meaning != ""
		}
	}
	return "", "", false
}

// handleWordList adds words given as "word - translation" lines
func (b *Bot) handleWordList(ctx context.Context, chatID int64, text string) {
	if text == "" {
		b.reply(chatID, "✍️ Send words after /word, one per line:\n/word\nhus - house\nspringa - to run")
		return
	}

	var added, skipped int
	var failed []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		term, meaning, ok := parseWordLine(line)
		if !ok {
			failed = append(failed, line)
			continue
		}
		_, err := b.deps.Store.Vocabulary.Create(ctx, &models.VocabularyItem{Term: term, Meaning: meaning})
		switch {
		case errors.Is(err, database.ErrDuplicate):
			skipped++
		case err != nil:
			b.log.Error("Failed to add word", "term", term, "error", err)
			failed = append(failed, line)
		default:
			added++
		}
	}

	msg := fmt.Sprintf("📝 Words processed:\n- Added: %d\n- Already known: %d", added, skipped)
	if len(failed) > 0 {
		msg += "\n- Not added:\n" + strings.Join(failed, "\n")
	}
	b.reply(chatID, msg)
}

func (b *Bot) handleWords(ctx context.Context, chatID int64) {
	words, err := b.deps.Store.Vocabulary.List(ctx)
	if err != nil {
		b.log.Error("Failed to list words", "error", err)
		b.reply(chatID, userError(err))
		return
	}
	paragraphs, err := b.deps.Store.Paragraphs.List(ctx)
	if err != nil {
		b.log.Error("Failed to list paragraphs", "error", err)
		b.reply(chatID, userError(err))
		return
	}
	b.reply(chatID, wordListText(b.deps.Leitner, words, paragraphs, time.Now()))
}

func wordListText(l *spaced_repetition.Leitner, words []models.VocabularyItem, paragraphs []models.ParagraphItem, now time.Time) string {
	ws := spaced_repetition.ComputeStats(l, words, now)
	ps := spaced_repetition.ComputeStats(l, paragraphs, now)

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Words: %d, mastered %d (%.0f%%), due %d\n", ws.Total, ws.Mastered, ws.MasteryRate, ws.Due)
	fmt.Fprintf(&sb, "📖 Paragraphs: %d, excluded %d, due %d\n", ps.Total, ps.Excluded, ps.Due)
	if len(words) == 0 {
		sb.WriteString("\nNo words yet.")
		return sb.String()
	}
	sb.WriteString("\n")
	for i, w := range words {
		if i == maxListedWords {
			fmt.Fprintf(&sb, "... and %d more, use /export for the full list", len(words)-maxListedWords)
			break
		}
		mark := fmt.Sprintf("%d/%d", w.SuccessfulReviewStreak, l.MasteryThreshold)
		if w.IsMastered {
			mark = "✅"
		}
		fmt.Fprintf(&sb, "#%d %s: %s [%s]\n", w.ID, w.Term, w.Meaning, mark)
	}
	return sb.String()
}

func parseID(args string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", args)
	}
	return id, nil
}

// parseTarget reads "<id>" as a word and "p<id>" as a paragraph
func parseTarget(args string) (id int64, paragraph bool, err error) {
	args = strings.TrimSpace(args)
	paragraph = strings.HasPrefix(strings.ToLower(args), "p")
	id, err = parseID(strings.TrimLeft(args, "pP"))
	return id, paragraph, err
}

func (b *Bot) handleMaster(ctx context.Context, chatID int64, args string) {
	id, paragraph, err := parseTarget(args)
	if err != nil {
		b.reply(chatID, "Usage: /master <word id> or /master p<paragraph id>, see /words for ids")
		return
	}
	if paragraph {
		b.toggleParagraphMastered(ctx, chatID, id)
		return
	}
	word, err := b.deps.Store.Vocabulary.Get(ctx, id)
	if err != nil {
		b.reply(chatID, userError(err))
		return
	}
	state := b.deps.Leitner.ToggleMastered(word.ReviewState)
	if err := b.deps.Store.Vocabulary.UpdateReview(ctx, id, state); err != nil {
		b.log.Error("Failed to toggle mastered", "id", id, "error", err)
		b.reply(chatID, userError(err))
		return
	}
	if state.IsMastered {
		b.reply(chatID, fmt.Sprintf("✅ %q is mastered.", word.Term))
		return
	}
	b.reply(chatID, fmt.Sprintf("🔁 %q is back in review.", word.Term))
}

func (b *Bot) toggleParagraphMastered(ctx context.Context, chatID int64, id int64) {
	p, err := b.deps.Store.Paragraphs.Get(ctx, id)
	if err != nil {
		b.reply(chatID, userError(err))
		return
	}
	p.ReviewState = b.deps.Leitner.ToggleMastered(p.ReviewState)
	if err := b.deps.Store.Paragraphs.Update(ctx, id, p); err != nil {
		b.log.Error("Failed to toggle paragraph mastered", "id", id, "error", err)
		b.reply(chatID, userError(err))
		return
	}
	if p.IsMastered {
		b.reply(chatID, fmt.Sprintf("✅ Paragraph #%d is mastered.", id))
		return
	}
	b.reply(chatID, fmt.Sprintf("🔁 Paragraph #%d is back in review.", id))
}

// parseEdit splits "<id> word - translation [- root]"
func parseEdit(args string) (id int64, term, meaning, root string, ok bool) {
	fields := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if len(fields) != 2 {
		return 0, "", "", "", false
	}
	id, err := parseID(fields[0])
	if err != nil {
		return 0, "", "", "", false
	}
	parts := strings.SplitN(fields[1], " - ", 3)
	if len(parts) < 2 {
		return 0, "", "", "", false
	}
	term = strings.TrimSpace(parts[0])
	meaning = strings.TrimSpace(parts[1])
	if len(parts) == 3 {
		root = strings.TrimSpace(parts[2])
	}
	return id, term, meaning, root, term != "" && meaning != ""
}

func (b *Bot) handleEdit(ctx context.Context, chatID int64, args string) {
	id, term, meaning, root, ok := parseEdit(args)
	if !ok {
		b.reply(chatID, "Usage: /edit <word id> word - translation [- root]")
		return
	}
	word, err := b.deps.Store.Vocabulary.Get(ctx, id)
	if err != nil {
		b.reply(chatID, userError(err))
		return
	}
	word.Term = term
	word.Meaning = meaning
	word.Root = root
	if err := b.deps.Store.Vocabulary.Update(ctx, id, word); err != nil {
		b.log.Error("Failed to edit word", "id", id, "error", err)
		b.reply(chatID, userError(err))
		return
	}
	b.reply(chatID, fmt.Sprintf("✏️ #%d %s: %s", id, term, meaning))
}

func (b *Bot) handleExclude(ctx context.Context, chatID int64, args string) {
	id, err := parseID(args)
	if err != nil {
		b.reply(chatID, "Usage: /exclude <paragraph id>")
		return
	}
	p, err := b.deps.Store.Paragraphs.Get(ctx, id)
	if err != nil {
		b.reply(chatID, userError(err))
		return
	}
	updated := b.deps.Leitner.ToggleExcluded(*p)
	if err := b.deps.Store.Paragraphs.Update(ctx, id, &updated); err != nil {
		b.log.Error("Failed to toggle excluded", "id", id, "error", err)
		b.reply(chatID, userError(err))
		return
	}
	if updated.IsExcluded {
		b.reply(chatID, fmt.Sprintf("🚫 Paragraph #%d is excluded from review.", id))
		return
	}
	b.reply(chatID, fmt.Sprintf("🔁 Paragraph #%d is back in review.", id))
}

func (b *Bot) handleDelete(ctx context.Context, chatID int64, args string) {
	id, paragraph, err := parseTarget(args)
	if err != nil {
		b.reply(chatID, "Usage: /delete <word id> or /delete p<paragraph id>")
		return
	}
	if paragraph {
		err = b.deps.Store.Paragraphs.Delete(ctx, id)
	} else {
		err = b.deps.Store.Vocabulary.Delete(ctx, id)
	}
	if err != nil {
		b.reply(chatID, userError(err))
		return
	}
	b.reply(chatID, "🗑 Deleted.")
}

func (b *Bot) handleRoot(ctx context.Context, chatID int64, args string) {
	if b.deps.Roots == nil {
		b.reply(chatID, "🔌 Text analysis is not configured.")
		return
	}
	id, err := parseID(args)
	if err != nil {
		b.reply(chatID, "Usage: /root <word id>")
		return
	}
	word, err := b.deps.Store.Vocabulary.Get(ctx, id)
	if err != nil {
		b.reply(chatID, userError(err))
		return
	}
	root, err := b.deps.Roots.ExplainRoot(ctx, word.Term)
	if err != nil {
		b.log.Error("Failed to explain root", "term", word.Term, "error", err)
		b.reply(chatID, userError(err))
		return
	}
	word.Root = root
	if err := b.deps.Store.Vocabulary.Update(ctx, id, word); err != nil {
		b.log.Error("Failed to save root", "id", id, "error", err)
		b.reply(chatID, userError(err))
		return
	}
	b.reply(chatID, fmt.Sprintf("🌱 %s\n\n%s", word.Term, root))
}

var clearPrompts = map[string]string{
	"all":        "⚠️ Delete all words and paragraphs?",
	"words":      "⚠️ Delete all words? Paragraphs are kept.",
	"paragraphs": "⚠️ Delete all paragraphs? Words are kept.",
}

func (b *Bot) confirmClear(chatID int64, args string) {
	scope := strings.ToLower(strings.TrimSpace(args))
	if scope == "" {
		scope = "all"
	}
	prompt, ok := clearPrompts[scope]
	if !ok {
		b.reply(chatID, "Usage: /clear, /clear words or /clear paragraphs")
		return
	}
	_, _ = b.sendMessage(chatID, withKeyboard(prompt, [][]MenuButton{{
		{Text: "🗑 Yes, delete", CallbackData: callbackData(prefixClear, scope)},
		{Text: "✖ No", CallbackData: callbackData(prefixClear, "no")},
	}}))
}

func (b *Bot) handleClear(ctx context.Context, chatID int64, messageID int, scope string) string {
	if _, ok := clearPrompts[scope]; !ok {
		_ = b.editMessage(chatID, messageID, screen{text: "👌 Nothing was deleted."})
		return ""
	}

	chat := b.chat(chatID)
	chat.mu.Lock()
	defer chat.mu.Unlock()

	var (
		err  error
		done string
	)
	switch scope {
	case "words":
		err = b.deps.Store.Vocabulary.Clear(ctx)
		done = "🗑 All words were deleted."
	case "paragraphs":
		err = b.deps.Store.Paragraphs.Clear(ctx)
		done = "🗑 All paragraphs were deleted."
	default:
		err = b.deps.Store.ClearAll(ctx)
		done = "🗑 All words and paragraphs were deleted."
	}
	if err != nil {
		b.log.Error("Failed to clear data", "scope", scope, "error", err)
		return userError(err)
	}

	if scope != "paragraphs" && chat.review != nil {
		chat.review.Stop()
		chat.review = nil
	}
	if scope != "words" {
		chat.paragraphs = nil
	}
	chat.pending = nil
	_ = b.editMessage(chatID, messageID, screen{text: done})
	return ""
}

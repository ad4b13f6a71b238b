package bot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/leitner/internal/backup"
	"github.com/example/leitner/internal/excel"
)

const maxDocumentSize = 10 << 20

// handleDocument restores a .json backup or imports an .xlsx/.csv word list
func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	doc := msg.Document
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(doc.FileName), "."))

	switch ext {
	case "json", "xlsx", "xlsm", "csv":
	default:
		b.reply(chatID, "📎 Send a .json backup, or an .xlsx or .csv word list.")
		return
	}
	if doc.FileSize > maxDocumentSize {
		b.reply(chatID, "📎 The file is too large.")
		return
	}

	data, err := b.download(ctx, doc.FileID)
	if err != nil {
		b.log.Error("Failed to download document", "file", doc.FileName, "error", err)
		b.reply(chatID, "❌ Could not download the file.")
		return
	}

	if ext == "json" {
		b.restoreBackup(ctx, chatID, data)
		return
	}

	cfg := excel.DefaultImportConfig()
	cfg.Format = ext
	result, err := b.deps.Importer.Import(ctx, bytes.NewReader(data), cfg)
	if err != nil {
		b.log.Error("Failed to import words", "file", doc.FileName, "error", err)
		b.reply(chatID, "❌ Could not read the word list: "+err.Error())
		return
	}
	b.reply(chatID, importSummary(result))
}

func importSummary(result *excel.ImportResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📥 Import finished\n- Rows: %d\n- Added: %d\n- Already known: %d",
		result.TotalProcessed, result.Created, result.Skipped)
	if len(result.Errors) > 0 {
		fmt.Fprintf(&sb, "\n- Errors: %d", len(result.Errors))
		for i, e := range result.Errors {
			if i == 10 {
				sb.WriteString("\n...")
				break
			}
			sb.WriteString("\n" + e)
		}
	}
	return sb.String()
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
}

func (b *Bot) restoreBackup(ctx context.Context, chatID int64, data []byte) {
	doc, err := backup.Read(bytes.NewReader(data))
	if err != nil {
		b.reply(chatID, "❌ Not a valid backup: "+err.Error())
		return
	}

	chat := b.chat(chatID)
	chat.mu.Lock()
	defer chat.mu.Unlock()
	if chat.review != nil {
		chat.review.Stop()
		chat.review = nil
	}
	chat.paragraphs = nil

	summary, err := b.deps.Backup.Restore(ctx, doc)
	if err != nil {
		b.log.Error("Failed to restore backup", "error", err)
		b.reply(chatID, userError(err))
		return
	}
	b.reply(chatID, fmt.Sprintf("♻️ Restored %d words and %d paragraphs.", summary.Words, summary.Paragraphs))
}

func (b *Bot) sendBackup(ctx context.Context, chatID int64) {
	doc, err := b.deps.Backup.Export(ctx)
	if err != nil {
		b.log.Error("Failed to export backup", "error", err)
		b.reply(chatID, userError(err))
		return
	}
	var buf bytes.Buffer
	if err := backup.Write(&buf, doc); err != nil {
		b.log.Error("Failed to encode backup", "error", err)
		b.reply(chatID, userError(err))
		return
	}
	name := fmt.Sprintf("leitner-backup-%s.json", time.Now().Format("2006-01-02"))
	b.sendDocument(chatID, name, buf.Bytes(), fmt.Sprintf("💾 %d words, %d paragraphs", len(doc.Data.Words), len(doc.Data.Paragraphs)))
}

func (b *Bot) sendExport(ctx context.Context, chatID int64) {
	var buf bytes.Buffer
	if err := excel.WriteVocabulary(ctx, b.deps.Store.Vocabulary, &buf); err != nil {
		b.log.Error("Failed to export words", "error", err)
		b.reply(chatID, userError(err))
		return
	}
	name := fmt.Sprintf("words-%s.xlsx", time.Now().Format("2006-01-02"))
	b.sendDocument(chatID, name, buf.Bytes(), "📤 Your word list")
}

func (b *Bot) sendDocument(chatID int64, name string, data []byte, caption string) {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	if _, err := b.api.Send(doc); err != nil {
		b.log.Error("Failed to send document", "name", name, "error", err)
		b.reply(chatID, "❌ Could not send the file.")
	}
}

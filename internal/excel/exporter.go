package excel

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/example/leitner/internal/database"
	"github.com/example/leitner/pkg/models"
)

var exportHeader = []interface{}{"Word", "Translation", "Root", "Streak", "Mastered", "Last reviewed"}

// WriteVocabulary writes the whole word list as an xlsx workbook
func WriteVocabulary(ctx context.Context, words *database.VocabularyRepository, w io.Writer) error {
	f, err := buildWorkbook(ctx, words)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ExportVocabulary saves the whole word list to an xlsx file
func ExportVocabulary(ctx context.Context, words *database.VocabularyRepository, path string) error {
	f, err := buildWorkbook(ctx, words)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func buildWorkbook(ctx context.Context, words *database.VocabularyRepository) (*excelize.File, error) {
	items, err := words.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list words: %w", err)
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for i, item := range items {
		cellName, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		row := exportRow(item)
		if err := f.SetSheetRow(sheet, cellName, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	return f, nil
}

func exportRow(item models.VocabularyItem) []interface{} {
	lastReviewed := ""
	if item.LastReviewedAt != nil {
		lastReviewed = item.LastReviewedAt.UTC().Format("2006-01-02 15:04")
	}
	mastered := "no"
	if item.IsMastered {
		mastered = "yes"
	}
	return []interface{}{item.Term, item.Meaning, item.Root, item.SuccessfulReviewStreak, mastered, lastReviewed}
}

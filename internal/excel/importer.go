package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/leitner/internal/database"
	"github.com/example/leitner/internal/logger"
	"github.com/example/leitner/pkg/models"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath      string // Path to the Excel or CSV file
	Format        string // "xlsx" or "csv"; taken from the file extension when empty
	TermColumn    string // Column with the term
	MeaningColumn string // Column with the translation
	RootColumn    string // Optional column with the root note
	SheetName     string // Sheet to import; the first sheet when empty
	StartRow      int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		TermColumn:    "A",
		MeaningColumn: "B",
		RootColumn:    "C",
		StartRow:      2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Skipped        int // terms already in the word list
	Errors         []string
}

// Importer adds spreadsheet rows to the vocabulary collection
type Importer struct {
	words *database.VocabularyRepository
	log   *logger.Logger
}

// NewImporter creates a new importer
func NewImporter(words *database.VocabularyRepository, log *logger.Logger) *Importer {
	return &Importer{words: words, log: log}
}

// ImportFile imports words from the Excel or CSV file named in the config
func (im *Importer) ImportFile(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open import file: %w", err)
	}
	defer file.Close()
	return im.Import(ctx, file, config)
}

// Import imports words from a spreadsheet stream
func (im *Importer) Import(ctx context.Context, r io.Reader, config ImportConfig) (*ImportResult, error) {
	format := strings.ToLower(config.Format)
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(config.FilePath)), ".")
	}

	var rows [][]string
	var err error
	switch format {
	case "csv":
		rows, err = readCSV(r)
	case "xlsx", "xlsm", "":
		rows, err = readExcel(r, config.SheetName)
	default:
		return nil, fmt.Errorf("unsupported import format %q", format)
	}
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	startRow := config.StartRow
	if startRow < 1 {
		startRow = 1
	}
	for i, row := range rows {
		// Skip header rows
		if i < startRow-1 || emptyRow(row) {
			continue
		}
		result.TotalProcessed++
		if err := im.processRow(ctx, row, config, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
		}
	}

	im.log.Info("Vocabulary import finished",
		"processed", result.TotalProcessed,
		"created", result.Created,
		"skipped", result.Skipped,
		"errors", len(result.Errors))
	return result, nil
}

func readExcel(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	return rows, nil
}

// processRow adds a single row through the regular add path
func (im *Importer) processRow(ctx context.Context, row []string, config ImportConfig, result *ImportResult) error {
	term := cleanWord(cell(row, config.TermColumn))
	meaning := strings.TrimSpace(cell(row, config.MeaningColumn))
	root := strings.TrimSpace(cell(row, config.RootColumn))

	if term == "" {
		return fmt.Errorf("word cannot be empty")
	}
	if meaning == "" {
		return fmt.Errorf("translation cannot be empty")
	}

	_, err := im.words.Create(ctx, &models.VocabularyItem{Term: term, Meaning: meaning, Root: root})
	if errors.Is(err, database.ErrDuplicate) {
		result.Skipped++
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create word: %w", err)
	}
	result.Created++
	return nil
}

func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
		return row[idx]
	}
	return ""
}

func emptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// cleanWord drops a trailing parenthesised note such as "gå (gick, gått)"
func cleanWord(word string) string {
	if i := strings.Index(word, "("); i > 0 {
		return strings.TrimSpace(word[:i])
	}
	return strings.TrimSpace(word)
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}

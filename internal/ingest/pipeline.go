package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/sync/singleflight"

	"github.com/example/leitner/internal/ai"
	"github.com/example/leitner/internal/database"
	"github.com/example/leitner/internal/logger"
	"github.com/example/leitner/pkg/models"
)

// Analyzer turns raw text into a structured analysis
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*ai.Analysis, error)
}

// ValidationError reports an analysis or submission that cannot be stored
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Result describes what an ingestion stored
type Result struct {
	Paragraph *models.ParagraphItem
	Created   []models.VocabularyItem
	Skipped   []string // terms already known
	Failed    []string // terms that could not be stored
}

// Pipeline stores analysed paragraphs and their vocabulary
type Pipeline struct {
	store    *database.Store
	analyzer Analyzer
	log      *logger.Logger
	group    singleflight.Group
}

// NewPipeline creates a new ingestion pipeline
func NewPipeline(store *database.Store, analyzer Analyzer, log *logger.Logger) *Pipeline {
	return &Pipeline{store: store, analyzer: analyzer, log: log}
}

// ErrAnalysisDisabled is returned when no analysis service is configured
var ErrAnalysisDisabled = errors.New("analysis is not configured")

// Analyze runs the analysis for raw text. Identical requests in flight share one call.
func (p *Pipeline) Analyze(ctx context.Context, raw string) (*ai.Analysis, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, &ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if p.analyzer == nil {
		return nil, ErrAnalysisDisabled
	}
	v, err, shared := p.group.Do("analyze:"+text, func() (interface{}, error) {
		return p.analyzer.Analyze(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		p.log.Debug("Joined in-flight analysis")
	}
	return v.(*ai.Analysis), nil
}

// Submit analyses raw text and ingests the result with every extracted expression.
// A second identical submission while one is in flight joins the first.
func (p *Pipeline) Submit(ctx context.Context, raw string) (*Result, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, &ValidationError{Field: "text", Reason: "must not be empty"}
	}
	v, err, _ := p.group.Do("submit:"+text, func() (interface{}, error) {
		analysis, err := p.Analyze(ctx, text)
		if err != nil {
			return nil, err
		}
		return p.Ingest(ctx, analysis)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// Ingest stores the paragraph and every vocabulary candidate of an analysis
func (p *Pipeline) Ingest(ctx context.Context, analysis *ai.Analysis) (*Result, error) {
	if analysis == nil {
		return nil, &ValidationError{Field: "analysis", Reason: "missing"}
	}
	return p.ingest(ctx, analysis, analysis.Vocabulary())
}

// IngestSelected stores the paragraph with only the chosen expressions.
// The translation keeps the annotations of every expression.
func (p *Pipeline) IngestSelected(ctx context.Context, analysis *ai.Analysis, selection []string) (*Result, error) {
	if analysis == nil {
		return nil, &ValidationError{Field: "analysis", Reason: "missing"}
	}
	if len(selection) == 0 {
		return nil, &ValidationError{Field: "selection", Reason: "select at least one expression"}
	}
	chosen := make(map[string]bool, len(selection))
	for _, s := range selection {
		chosen[strings.TrimSpace(s)] = true
	}
	var keep []ai.Candidate
	for _, c := range analysis.Vocabulary() {
		if chosen[c.Term] {
			keep = append(keep, c)
		}
	}
	if len(keep) == 0 {
		return nil, &ValidationError{Field: "selection", Reason: "none of the selected expressions were extracted"}
	}
	return p.ingest(ctx, analysis, keep)
}

func (p *Pipeline) ingest(ctx context.Context, analysis *ai.Analysis, candidates []ai.Candidate) (*Result, error) {
	if err := validate(analysis, candidates); err != nil {
		return nil, err
	}

	annotations := make(models.Annotations, 0, len(analysis.Phrases)+len(analysis.Words))
	for _, c := range analysis.Vocabulary() {
		annotations = append(annotations, models.Annotation{Term: c.Term, Meaning: c.Meaning})
	}

	paragraph := &models.ParagraphItem{
		Text: strings.TrimSpace(analysis.CorrectedText),
		Translation: models.Translation{
			Text:        strings.TrimSpace(analysis.Translation),
			Annotations: annotations,
		},
		FocusWords: focusWords(analysis.CorrectedText, candidates),
	}
	if _, err := p.store.Paragraphs.Create(ctx, paragraph); err != nil {
		return nil, fmt.Errorf("failed to save paragraph: %w", err)
	}

	result := &Result{Paragraph: paragraph}
	paragraph.LinkedTermIDs = []int64{}
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		term := strings.TrimSpace(c.Term)
		if seen[term] {
			result.Skipped = append(result.Skipped, term)
			continue
		}
		seen[term] = true

		item := &models.VocabularyItem{
			Term:              term,
			Meaning:           strings.TrimSpace(c.Meaning),
			SourceParagraphID: paragraph.ID,
		}
		if _, err := p.store.Vocabulary.Create(ctx, item); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				result.Skipped = append(result.Skipped, term)
				continue
			}
			p.log.Error("Failed to save vocabulary item", "term", term, "paragraph_id", paragraph.ID, "error", err)
			result.Failed = append(result.Failed, term)
			continue
		}
		result.Created = append(result.Created, *item)
		paragraph.LinkedTermIDs = append(paragraph.LinkedTermIDs, item.ID)
	}

	p.log.Info("Paragraph ingested",
		"paragraph_id", paragraph.ID,
		"created", len(result.Created),
		"skipped", len(result.Skipped),
		"failed", len(result.Failed))
	return result, nil
}

func validate(analysis *ai.Analysis, candidates []ai.Candidate) error {
	if strings.TrimSpace(analysis.CorrectedText) == "" {
		return &ValidationError{Field: "corrected text", Reason: "must not be empty"}
	}
	if strings.TrimSpace(analysis.Translation) == "" {
		return &ValidationError{Field: "translation", Reason: "must not be empty"}
	}
	if len(candidates) == 0 {
		return &ValidationError{Field: "vocabulary", Reason: "must not be empty"}
	}
	for i, c := range candidates {
		if strings.TrimSpace(c.Term) == "" || strings.TrimSpace(c.Meaning) == "" {
			return &ValidationError{Field: "vocabulary", Reason: fmt.Sprintf("entry %d needs a term and a meaning", i+1)}
		}
	}
	return nil
}

// focusWords returns the single-word candidates that literally occur in the text
func focusWords(text string, candidates []ai.Candidate) models.WordList {
	inText := make(map[string]bool)
	for _, token := range strings.Fields(text) {
		inText[strings.ToLower(strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}))] = true
	}
	words := models.WordList{}
	added := make(map[string]bool)
	for _, c := range candidates {
		w := strings.ToLower(strings.TrimSpace(c.Term))
		if strings.ContainsAny(w, " \t") || !inText[w] || added[w] {
			continue
		}
		added[w] = true
		words = append(words, w)
	}
	return words
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Annotation explains a single term of a paragraph translation
type Annotation struct {
	Term    string `json:"word"`
	Meaning string `json:"translation"`
}

// Annotations is stored as a JSON column
type Annotations []Annotation

// Value implements driver.Valuer
func (a Annotations) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (a *Annotations) Scan(src interface{}) error {
	return scanJSON(src, a)
}

// Translation holds the full translation of a paragraph with its term annotations
type Translation struct {
	Text        string      `json:"text"`
	Annotations Annotations `json:"words"`
}

// WordList is a list of words stored as a JSON column
type WordList []string

// Value implements driver.Valuer
func (w WordList) Value() (driver.Value, error) {
	if w == nil {
		return "[]", nil
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (w *WordList) Scan(src interface{}) error {
	return scanJSON(src, w)
}

// ParagraphItem represents a corrected paragraph with its translation
type ParagraphItem struct {
	ID          int64       `json:"id" db:"id"`
	Text        string      `json:"paragraph" db:"text"`
	Translation Translation `json:"translation" db:"-"`
	FocusWords  WordList    `json:"words" db:"focus_words"` // words the learner marked in the text
	ReviewState
	IsExcluded bool      `json:"is_excluded" db:"is_excluded"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`

	// LinkedTermIDs is derived from vocabulary back-references and never stored
	LinkedTermIDs []int64 `json:"linked_term_ids,omitempty" db:"-"`
}

// Review implements Reviewable
func (p ParagraphItem) Review() ReviewState { return p.ReviewState }

// Excluded implements Reviewable
func (p ParagraphItem) Excluded() bool { return p.IsExcluded }

func scanJSON(src interface{}, dst interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

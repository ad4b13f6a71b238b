package models

import "time"

// BackupData holds every collection of a backup document
type BackupData struct {
	Words      []VocabularyItem `json:"words"`
	Paragraphs []ParagraphItem  `json:"paragraphs"`
}

// Backup is the document produced by export and consumed by restore
type Backup struct {
	Version   string     `json:"version"`
	Timestamp time.Time  `json:"timestamp"`
	Data      BackupData `json:"data"`
}

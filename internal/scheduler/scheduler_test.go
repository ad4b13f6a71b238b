package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/leitner/internal/database"
	"github.com/example/leitner/internal/logger"
	"github.com/example/leitner/internal/spaced_repetition"
	"github.com/example/leitner/pkg/models"
)

type recordingNotifier struct {
	counts []int
	err    error
}

func (n *recordingNotifier) SendReminders(count int) error {
	n.counts = append(n.counts, count)
	return n.err
}

func setup(t *testing.T, now time.Time) (*Scheduler, *database.Store, *recordingNotifier) {
	t.Helper()
	db, err := database.Connect(database.Options{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := database.NewStore(db)

	n := &recordingNotifier{}
	s := New(n, store, spaced_repetition.NewLeitner(), Window{StartHour: DefaultNotificationStartHour, EndHour: DefaultNotificationEndHour}, logger.NewNop())
	s.now = func() time.Time { return now }
	return s, store, n
}

func TestRunManualCheckCountsDueItems(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.Local)
	s, store, n := setup(t, now)

	count, err := s.RunManualCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Empty(t, n.counts, "nothing due, nothing sent")

	yesterday := now.Add(-25 * time.Hour)
	_, err = store.Vocabulary.Create(ctx, &models.VocabularyItem{Term: "bil", Meaning: "car"})
	require.NoError(t, err)
	_, err = store.Vocabulary.Create(ctx, &models.VocabularyItem{
		Term: "hus", Meaning: "house",
		ReviewState: models.ReviewState{LastReviewedAt: &yesterday, SuccessfulReviewStreak: 1},
	})
	require.NoError(t, err)
	_, err = store.Paragraphs.Create(ctx, &models.ParagraphItem{Text: "Hej", Translation: models.Translation{Text: "Hi"}})
	require.NoError(t, err)
	_, err = store.Paragraphs.Create(ctx, &models.ParagraphItem{Text: "Då", Translation: models.Translation{Text: "Bye"}, IsExcluded: true})
	require.NoError(t, err)

	count, err = s.RunManualCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []int{2}, n.counts)
}

func TestRunManualCheckNotifierError(t *testing.T) {
	ctx := context.Background()
	s, store, n := setup(t, time.Now())
	n.err = errors.New("chat not found")
	_, err := store.Vocabulary.Create(ctx, &models.VocabularyItem{Term: "bil", Meaning: "car"})
	require.NoError(t, err)

	_, err = s.RunManualCheck(ctx)
	assert.Error(t, err)
}

func TestNotificationWindow(t *testing.T) {
	ctx := context.Background()
	late := time.Date(2024, 6, 10, 22, 0, 0, 0, time.Local)
	s, store, n := setup(t, late)
	_, err := store.Vocabulary.Create(ctx, &models.VocabularyItem{Term: "bil", Meaning: "car"})
	require.NoError(t, err)

	assert.True(t, s.InWindow(4))
	assert.True(t, s.InWindow(18))
	assert.False(t, s.InWindow(3))
	assert.False(t, s.InWindow(19))

	s.checkAndSendReminders()
	assert.Empty(t, n.counts)

	s.now = func() time.Time { return late.Add(-10 * time.Hour) }
	s.checkAndSendReminders()
	assert.Equal(t, []int{1}, n.counts)
}

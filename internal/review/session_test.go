package review

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/leitner/internal/logger"
	"github.com/example/leitner/internal/spaced_repetition"
	"github.com/example/leitner/pkg/models"
)

var start = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

type fakeDeck struct {
	mu      sync.Mutex
	cards   []Card
	saves   map[int64][]models.ReviewState
	saveErr error
	loadErr error
}

func newFakeDeck(cards ...Card) *fakeDeck {
	return &fakeDeck{cards: cards, saves: make(map[int64][]models.ReviewState)}
}

func (d *fakeDeck) Cards(ctx context.Context) ([]Card, error) {
	if d.loadErr != nil {
		return nil, d.loadErr
	}
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out, nil
}

func (d *fakeDeck) SaveReview(ctx context.Context, id int64, state models.ReviewState) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.saveErr != nil {
		return d.saveErr
	}
	d.saves[id] = append(d.saves[id], state)
	return nil
}

func (d *fakeDeck) saveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.saves {
		n += len(s)
	}
	return n
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newCard(id int64, term, translation string) Card {
	return Card{ID: id, Term: term, Translation: translation}
}

func reviewedCard(id int64, term, translation string, daysAgo int) Card {
	last := start.Add(-time.Duration(daysAgo) * 24 * time.Hour)
	c := newCard(id, term, translation)
	c.State = models.ReviewState{LastReviewedAt: &last}
	return c
}

func newTestSession(t *testing.T, deck Deck) (*Session, *clock) {
	t.Helper()
	c := &clock{t: start}
	s := NewSession(deck, spaced_repetition.NewLeitner(), logger.NewNop())
	s.SetClock(c.now)
	s.SetRand(rand.New(rand.NewSource(1)))
	return s, c
}

func indexOf(pool []rune, r rune) int {
	for i, p := range pool {
		if p == r {
			return i
		}
	}
	return -1
}

// spell picks the letters of word from the pool in order
func spell(t *testing.T, s *Session, word string) (*LetterResult, error) {
	t.Helper()
	var (
		res *LetterResult
		err error
	)
	for _, r := range word {
		view, verr := s.Letters()
		require.NoError(t, verr)
		i := indexOf(view.Pool, r)
		require.GreaterOrEqual(t, i, 0, "letter %q not in pool", r)
		res, err = s.PickLetter(context.Background(), i)
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

func currentTerm(t *testing.T, s *Session, d *fakeDeck) string {
	t.Helper()
	view, err := s.Letters()
	require.NoError(t, err)
	for _, c := range d.cards {
		if c.ID == view.CardID {
			return c.Term
		}
	}
	t.Fatalf("card %d not in deck", view.CardID)
	return ""
}

func TestStartWithNothingDue(t *testing.T) {
	deck := newFakeDeck(reviewedCard(1, "hus", "house", 0))
	s, _ := newTestSession(t, deck)

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, NoItemsDue, s.State())
}

func TestStartLoadFailureReturnsToIdle(t *testing.T) {
	deck := newFakeDeck()
	deck.loadErr = errors.New("disk gone")
	s, _ := newTestSession(t, deck)

	assert.Error(t, s.Start(context.Background()))
	assert.Equal(t, Idle, s.State())
}

func TestIncorrectPairingNeverRecords(t *testing.T) {
	ctx := context.Background()
	deck := newFakeDeck(newCard(1, "katt", "cat"), newCard(2, "hund", "dog"))
	s, _ := newTestSession(t, deck)
	require.NoError(t, s.Start(ctx))
	require.Equal(t, Matching, s.State())

	res, err := s.SelectTerm(1)
	require.NoError(t, err)
	assert.False(t, res.Evaluated)

	res, err = s.SelectTranslation(2)
	require.NoError(t, err)
	assert.True(t, res.Evaluated)
	assert.False(t, res.Correct)
	require.NotNil(t, res.Continuation)
	assert.Equal(t, 0, deck.saveCount())

	// Entries of an incorrect pairing are locked until it is cleared
	_, err = s.SelectTerm(1)
	assert.ErrorIs(t, err, ErrInvalidSelection)
	_, err = s.SelectTranslation(2)
	assert.ErrorIs(t, err, ErrInvalidSelection)

	assert.True(t, res.Continuation.Resume())
	view, err := s.Matching()
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.Terms[len(view.Terms)-1].ID, "term requeued to the end")
	for _, e := range view.Terms {
		assert.Equal(t, Open, e.Status)
	}

	res, err = s.SelectTerm(2)
	require.NoError(t, err)
	res, err = s.SelectTranslation(2)
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.False(t, res.StageComplete)

	_, err = s.SelectTranslation(1)
	require.NoError(t, err)
	res, err = s.SelectTerm(1)
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.True(t, res.StageComplete)
	assert.Equal(t, Letters, s.State())
	assert.Equal(t, 0, deck.saveCount())

	for i := 0; i < 2; i++ {
		term := currentTerm(t, s, deck)
		_, err := spell(t, s, term)
		require.NoError(t, err)
	}
	assert.Equal(t, BatchComplete, s.State())

	require.Len(t, deck.saves[1], 1)
	assert.Equal(t, 0, deck.saves[1][0].SuccessfulReviewStreak, "mismatched card records a failure")
	require.NotNil(t, deck.saves[1][0].LastReviewedAt)
	require.Len(t, deck.saves[2], 1)
	assert.Equal(t, 1, deck.saves[2][0].SuccessfulReviewStreak)

	report := s.Report()
	assert.Equal(t, BatchReport{Batch: 1, Total: 1, Correct: 1, Recorded: 2}, report)
}

func TestSwitchingSelectionBeforePairing(t *testing.T) {
	deck := newFakeDeck(newCard(1, "katt", "cat"), newCard(2, "hund", "dog"))
	s, _ := newTestSession(t, deck)
	require.NoError(t, s.Start(context.Background()))

	_, err := s.SelectTerm(1)
	require.NoError(t, err)
	_, err = s.SelectTerm(2)
	require.NoError(t, err)

	view, err := s.Matching()
	require.NoError(t, err)
	for _, e := range view.Terms {
		if e.ID == 1 {
			assert.Equal(t, Open, e.Status)
		} else {
			assert.Equal(t, Selected, e.Status)
		}
	}

	_, err = s.SelectTerm(99)
	assert.ErrorIs(t, err, ErrInvalidSelection)
}

func TestReviewedCardsSkipMatching(t *testing.T) {
	deck := newFakeDeck(reviewedCard(1, "katt", "cat", 3))
	s, _ := newTestSession(t, deck)
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, Letters, s.State())

	_, err := s.Matching()
	assert.ErrorIs(t, err, ErrWrongState)

	res, err := spell(t, s, "katt")
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.True(t, res.Recorded)
	assert.True(t, res.BatchComplete)
	require.Len(t, deck.saves[1], 1)
	assert.Equal(t, 1, deck.saves[1][0].SuccessfulReviewStreak)
	assert.True(t, start.Equal(*deck.saves[1][0].LastReviewedAt))
}

func TestFailedLetterAttemptRequeuesAndRecordsOnce(t *testing.T) {
	deck := newFakeDeck(
		reviewedCard(1, "katt", "cat", 3),
		reviewedCard(2, "hund", "dog", 2),
	)
	deck.cards[0].State.SuccessfulReviewStreak = 0
	s, _ := newTestSession(t, deck)
	require.NoError(t, s.Start(context.Background()))

	view, err := s.Letters()
	require.NoError(t, err)
	require.Equal(t, int64(1), view.CardID, "oldest review first")

	res, err := spell(t, s, "ttak")
	require.NoError(t, err)
	assert.True(t, res.Finished)
	assert.False(t, res.Passed)
	assert.True(t, res.Requeued)
	assert.Equal(t, 4, res.Evaluation.Mistakes)
	assert.Equal(t, 0, deck.saveCount())

	view, err = s.Letters()
	require.NoError(t, err)
	assert.Equal(t, int64(2), view.CardID)
	assert.Equal(t, 2, view.Remaining)

	_, err = spell(t, s, "hund")
	require.NoError(t, err)
	_, err = spell(t, s, "katt")
	require.NoError(t, err)
	assert.Equal(t, BatchComplete, s.State())

	// a failed attempt only requeues; the passing retry counts
	require.Len(t, deck.saves[1], 1)
	assert.Equal(t, 1, deck.saves[1][0].SuccessfulReviewStreak)
	require.Len(t, deck.saves[2], 1)
	assert.Equal(t, 1, deck.saves[2][0].SuccessfulReviewStreak)
	assert.Equal(t, BatchReport{Batch: 1, Total: 1, Correct: 2, Recorded: 2}, s.Report())
}

func TestPassAfterFailedAttemptKeepsStreak(t *testing.T) {
	deck := newFakeDeck(reviewedCard(1, "katt", "cat", 10))
	deck.cards[0].State.SuccessfulReviewStreak = 2
	s, _ := newTestSession(t, deck)
	require.NoError(t, s.Start(context.Background()))

	res, err := spell(t, s, "ttak")
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, 0, deck.saveCount())

	res, err = spell(t, s, "katt")
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.True(t, res.Recorded)

	require.Len(t, deck.saves[1], 1)
	assert.Equal(t, 3, deck.saves[1][0].SuccessfulReviewStreak)
	assert.False(t, deck.saves[1][0].IsMastered)
}

func TestSlowAttemptFails(t *testing.T) {
	deck := newFakeDeck(reviewedCard(1, "katt", "cat", 3))
	s, c := newTestSession(t, deck)
	require.NoError(t, s.Start(context.Background()))

	c.advance(11 * time.Second)
	res, err := spell(t, s, "katt")
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.True(t, res.Evaluation.TookTooLong)
	assert.True(t, res.Requeued)

	// The requeued attempt has its own clock
	res, err = spell(t, s, "katt")
	require.NoError(t, err)
	assert.True(t, res.Passed)
	require.Len(t, deck.saves[1], 1)
	assert.Equal(t, 1, deck.saves[1][0].SuccessfulReviewStreak)
}

func TestHints(t *testing.T) {
	ctx := context.Background()
	deck := newFakeDeck(reviewedCard(1, "katt", "cat", 3))
	s, _ := newTestSession(t, deck)
	require.NoError(t, s.Start(ctx))

	res, err := s.Hint(ctx)
	require.NoError(t, err)
	assert.False(t, res.Finished)
	view, err := s.Letters()
	require.NoError(t, err)
	assert.Equal(t, "k", view.Built)
	assert.Equal(t, 1, view.Hints)
	assert.Equal(t, 1, view.MaxHints)

	res, err = spell(t, s, "att")
	require.NoError(t, err)
	assert.True(t, res.Passed)
}

func TestTooManyHintsFail(t *testing.T) {
	ctx := context.Background()
	deck := newFakeDeck(reviewedCard(1, "katt", "cat", 3))
	s, _ := newTestSession(t, deck)
	require.NoError(t, s.Start(ctx))

	var res *LetterResult
	var err error
	for i := 0; i < 4; i++ {
		res, err = s.Hint(ctx)
		require.NoError(t, err)
	}
	assert.True(t, res.Finished)
	assert.False(t, res.Passed)
	assert.True(t, res.Requeued)
}

func TestHintUnavailable(t *testing.T) {
	ctx := context.Background()
	deck := newFakeDeck(reviewedCard(1, "ab", "x", 3))
	s, _ := newTestSession(t, deck)
	require.NoError(t, s.Start(ctx))

	view, err := s.Letters()
	require.NoError(t, err)
	_, err = s.PickLetter(ctx, indexOf(view.Pool, 'b'))
	require.NoError(t, err)

	_, err = s.Hint(ctx)
	assert.ErrorIs(t, err, ErrNoHint)
	view, err = s.Letters()
	require.NoError(t, err)
	assert.Equal(t, 0, view.Hints)
}

func TestUndoAndClear(t *testing.T) {
	ctx := context.Background()
	deck := newFakeDeck(reviewedCard(1, "katt", "cat", 3))
	s, _ := newTestSession(t, deck)
	require.NoError(t, s.Start(ctx))

	before, err := s.Letters()
	require.NoError(t, err)
	assert.False(t, before.CanUndo)

	_, err = s.PickLetter(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, s.Undo())
	after, err := s.Letters()
	require.NoError(t, err)
	assert.Equal(t, before.Pool, after.Pool, "undo restores the letter to its slot")
	assert.Empty(t, after.Built)

	_, err = spell(t, s, "ka")
	require.NoError(t, err)
	require.NoError(t, s.Clear())
	cleared, err := s.Letters()
	require.NoError(t, err)
	assert.Empty(t, cleared.Built)
	assert.Len(t, cleared.Pool, 4)
	assert.False(t, cleared.CanUndo)
	assert.Equal(t, before.StartedAt, cleared.StartedAt)

	_, err = s.PickLetter(ctx, 7)
	assert.ErrorIs(t, err, ErrInvalidSelection)
}

func TestSaveFailureHoldsSession(t *testing.T) {
	ctx := context.Background()
	deck := newFakeDeck(reviewedCard(1, "katt", "cat", 3), reviewedCard(2, "hus", "house", 2))
	deck.saveErr = errors.New("database is locked")
	s, _ := newTestSession(t, deck)
	require.NoError(t, s.Start(ctx))

	res, err := spell(t, s, "katt")
	require.Error(t, err)
	assert.True(t, res.AwaitingSave)
	assert.True(t, s.AwaitingSave())
	assert.Equal(t, Letters, s.State())

	_, err = s.PickLetter(ctx, 0)
	assert.ErrorIs(t, err, ErrAwaitingSave)
	_, err = s.Hint(ctx)
	assert.ErrorIs(t, err, ErrAwaitingSave)

	_, err = s.RetrySave(ctx)
	assert.Error(t, err)

	deck.saveErr = nil
	res, err = s.RetrySave(ctx)
	require.NoError(t, err)
	assert.True(t, res.Recorded)
	assert.False(t, s.AwaitingSave())
	require.Len(t, deck.saves[1], 1)

	view, err := s.Letters()
	require.NoError(t, err)
	assert.Equal(t, int64(2), view.CardID)
}

func TestBatchesAndOrdering(t *testing.T) {
	deck := newFakeDeck(
		reviewedCard(1, "ett", "one", 2),
		reviewedCard(2, "två", "two", 9),
		newCard(3, "tre", "three"),
		reviewedCard(4, "fyra", "four", 5),
		reviewedCard(5, "fem", "five", 4),
		newCard(6, "sex", "six"),
		reviewedCard(7, "sju", "seven", 3),
	)
	s, _ := newTestSession(t, deck)
	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, Matching, s.State())

	view, err := s.Matching()
	require.NoError(t, err)
	var ids []int64
	for _, e := range view.Terms {
		ids = append(ids, e.ID)
	}
	assert.ElementsMatch(t, []int64{3, 6}, ids)

	for _, id := range []int64{3, 6} {
		_, err := s.SelectTerm(id)
		require.NoError(t, err)
		_, err = s.SelectTranslation(id)
		require.NoError(t, err)
	}
	require.Equal(t, Letters, s.State())

	var order []int64
	for s.State() == Letters {
		view, err := s.Letters()
		require.NoError(t, err)
		order = append(order, view.CardID)
		_, err = spell(t, s, currentTerm(t, s, deck))
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{3, 6, 2, 4, 5}, order)
	assert.Equal(t, BatchComplete, s.State())
	assert.Equal(t, BatchReport{Batch: 1, Total: 2, Correct: 5, Recorded: 5}, s.Report())

	next, err := s.AdvanceLater()
	require.NoError(t, err)
	assert.True(t, next.Resume())
	assert.Equal(t, Letters, s.State())

	order = nil
	for s.State() == Letters {
		view, err := s.Letters()
		require.NoError(t, err)
		order = append(order, view.CardID)
		_, err = spell(t, s, currentTerm(t, s, deck))
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{7, 1}, order)
	assert.Equal(t, BatchReport{Batch: 2, Total: 2, Correct: 2, Recorded: 2}, s.Report())

	require.NoError(t, s.NextBatch())
	assert.Equal(t, SessionComplete, s.State())
	assert.ErrorIs(t, s.NextBatch(), ErrWrongState)
}

func TestStaleContinuationsAreIgnored(t *testing.T) {
	deck := newFakeDeck(newCard(1, "katt", "cat"), newCard(2, "hund", "dog"))
	s, _ := newTestSession(t, deck)
	require.NoError(t, s.Start(context.Background()))

	_, err := s.SelectTerm(1)
	require.NoError(t, err)
	res, err := s.SelectTranslation(2)
	require.NoError(t, err)
	require.NotNil(t, res.Continuation)

	s.Stop()
	assert.False(t, res.Continuation.Resume())
	assert.Equal(t, Idle, s.State())
}

func TestAdvanceLaterAfterManualAdvance(t *testing.T) {
	deck := newFakeDeck(reviewedCard(1, "hus", "house", 3))
	s, _ := newTestSession(t, deck)
	require.NoError(t, s.Start(context.Background()))
	_, err := spell(t, s, "hus")
	require.NoError(t, err)

	next, err := s.AdvanceLater()
	require.NoError(t, err)
	require.NoError(t, s.NextBatch())
	assert.Equal(t, SessionComplete, s.State())
	assert.False(t, next.Resume())
}

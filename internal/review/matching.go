package review

import (
	"math/rand"
)

// MatchStatus is the display status of one entry in the matching lists
type MatchStatus int

const (
	Open MatchStatus = iota
	Selected
	Correct
	Incorrect
)

// MatchEntry is one button of the matching exercise
type MatchEntry struct {
	ID     int64
	Text   string
	Status MatchStatus
}

// MatchingView is a snapshot of both matching lists
type MatchingView struct {
	Terms        []MatchEntry
	Translations []MatchEntry
}

// MatchResult describes what a selection did
type MatchResult struct {
	Evaluated     bool // both sides were selected and compared
	Correct       bool
	Continuation  *Continuation // clears an incorrect pairing, resume after MatchRetryDelay
	StageComplete bool
}

type matching struct {
	terms        []int64
	translations []int64
	text         map[int64]Card

	termStatus        map[int64]MatchStatus
	translationStatus map[int64]MatchStatus
	selectedTerm      int64
	selectedTrans     int64
}

func newMatching(cards []Card, rnd *rand.Rand) *matching {
	m := &matching{
		text:              make(map[int64]Card, len(cards)),
		termStatus:        make(map[int64]MatchStatus, len(cards)),
		translationStatus: make(map[int64]MatchStatus, len(cards)),
	}
	for _, c := range cards {
		m.terms = append(m.terms, c.ID)
		m.translations = append(m.translations, c.ID)
		m.text[c.ID] = c
		m.termStatus[c.ID] = Open
		m.translationStatus[c.ID] = Open
	}
	rnd.Shuffle(len(m.terms), func(i, j int) { m.terms[i], m.terms[j] = m.terms[j], m.terms[i] })
	rnd.Shuffle(len(m.translations), func(i, j int) {
		m.translations[i], m.translations[j] = m.translations[j], m.translations[i]
	})
	return m
}

func (m *matching) done() bool {
	for _, status := range m.termStatus {
		if status != Correct {
			return false
		}
	}
	return true
}

// Matching returns a snapshot of the matching lists
func (s *Session) Matching() (MatchingView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Matching {
		return MatchingView{}, ErrWrongState
	}
	m := s.match
	var view MatchingView
	for _, id := range m.terms {
		view.Terms = append(view.Terms, MatchEntry{ID: id, Text: m.text[id].Term, Status: m.termStatus[id]})
	}
	for _, id := range m.translations {
		view.Translations = append(view.Translations, MatchEntry{ID: id, Text: m.text[id].Translation, Status: m.translationStatus[id]})
	}
	return view, nil
}

// SelectTerm selects a term; the pair is evaluated once a translation is selected too
func (s *Session) SelectTerm(id int64) (*MatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Matching {
		return nil, ErrWrongState
	}
	m := s.match
	status, ok := m.termStatus[id]
	if !ok || (status != Open && status != Selected) {
		return nil, ErrInvalidSelection
	}
	if m.selectedTerm != 0 {
		m.termStatus[m.selectedTerm] = Open
	}
	m.selectedTerm = id
	m.termStatus[id] = Selected
	return s.evaluatePair(), nil
}

// SelectTranslation selects a translation; the pair is evaluated once a term is selected too
func (s *Session) SelectTranslation(id int64) (*MatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Matching {
		return nil, ErrWrongState
	}
	m := s.match
	status, ok := m.translationStatus[id]
	if !ok || (status != Open && status != Selected) {
		return nil, ErrInvalidSelection
	}
	if m.selectedTrans != 0 {
		m.translationStatus[m.selectedTrans] = Open
	}
	m.selectedTrans = id
	m.translationStatus[id] = Selected
	return s.evaluatePair(), nil
}

func (s *Session) evaluatePair() *MatchResult {
	m := s.match
	if m.selectedTerm == 0 || m.selectedTrans == 0 {
		return &MatchResult{}
	}
	term, trans := m.selectedTerm, m.selectedTrans
	m.selectedTerm, m.selectedTrans = 0, 0

	if term == trans {
		m.termStatus[term] = Correct
		m.translationStatus[trans] = Correct
		result := &MatchResult{Evaluated: true, Correct: true}
		if m.done() {
			result.StageComplete = true
			s.startLetters()
		}
		return result
	}

	m.termStatus[term] = Incorrect
	m.translationStatus[trans] = Incorrect
	s.cards[term].matchedClean = false

	return &MatchResult{
		Evaluated: true,
		Continuation: s.continuation(func() {
			if s.state != Matching {
				return
			}
			m.termStatus[term] = Open
			m.translationStatus[trans] = Open
			m.requeueTerm(term)
		}),
	}
}

func (m *matching) requeueTerm(id int64) {
	for i, t := range m.terms {
		if t == id {
			m.terms = append(m.terms[:i], m.terms[i+1:]...)
			break
		}
	}
	m.terms = append(m.terms, id)
}

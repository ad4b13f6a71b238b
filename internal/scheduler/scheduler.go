package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/leitner/internal/database"
	"github.com/example/leitner/internal/logger"
	"github.com/example/leitner/internal/spaced_repetition"
)

// Default notification window
const (
	DefaultNotificationStartHour = 4
	DefaultNotificationEndHour   = 18
)

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	notifier  Notifier
	store     *database.Store
	leitner   *spaced_repetition.Leitner
	log       *logger.Logger
	startHour int
	endHour   int
	now       func() time.Time
}

// Notifier interface for sending notifications
type Notifier interface {
	SendReminders(count int) error
}

// Window limits the hours in which reminders are sent
type Window struct {
	StartHour int
	EndHour   int
}

// New creates a new scheduler instance
func New(notifier Notifier, store *database.Store, leitner *spaced_repetition.Leitner, window Window, log *logger.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.Local),
		notifier:  notifier,
		store:     store,
		leitner:   leitner,
		log:       log,
		startHour: window.StartHour,
		endHour:   window.EndHour,
		now:       time.Now,
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(1).Hour().Do(s.checkAndSendReminders); err != nil {
		return fmt.Errorf("failed to schedule reminders: %w", err)
	}
	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// InWindow reports whether the hour lies inside the notification window
func (s *Scheduler) InWindow(hour int) bool {
	return hour >= s.startHour && hour <= s.endHour
}

// checkAndSendReminders sends a reminder when anything is due inside the notification window
func (s *Scheduler) checkAndSendReminders() {
	currentHour := s.now().Hour()
	if !s.InWindow(currentHour) {
		s.log.Debug("Outside notification hours, skipping reminders",
			"hour", currentHour, "start", s.startHour, "end", s.endHour)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.RunManualCheck(ctx); err != nil {
		s.log.Error("Error sending reminders", "error", err)
	}
}

// RunManualCheck counts due items and notifies when there are any
func (s *Scheduler) RunManualCheck(ctx context.Context) (int, error) {
	count, err := s.DueCount(ctx)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}
	if err := s.notifier.SendReminders(count); err != nil {
		return count, fmt.Errorf("failed to send reminders: %w", err)
	}
	s.log.Info("Reminder sent", "due", count)
	return count, nil
}

// DueCount returns how many words and paragraphs are due now
func (s *Scheduler) DueCount(ctx context.Context) (int, error) {
	now := s.now()
	words, err := s.store.Vocabulary.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list words: %w", err)
	}
	paragraphs, err := s.store.Paragraphs.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list paragraphs: %w", err)
	}
	return len(spaced_repetition.DueItems(s.leitner, words, now)) +
		len(spaced_repetition.DueItems(s.leitner, paragraphs, now)), nil
}

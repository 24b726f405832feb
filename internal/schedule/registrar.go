// Package schedule provides the one-shot trigger registrar used to delay a
// booking until the class opens. Triggers are named deterministically from
// the class id, so re-scans create at most one active trigger per class.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/gym-booking-assistant/internal/events"
)

// ErrScheduleExists is returned when a trigger with the same name is already
// registered and has not fired yet.
var ErrScheduleExists = errors.New("schedule already exists")

// TriggerName derives the deterministic schedule name for a class id.
func TriggerName(classID string) string {
	return fmt.Sprintf("ScheduleBooking_%s", classID)
}

// Trigger is a named one-shot timed event delivery.
type Trigger struct {
	Name string
	// At is the UTC instant, second precision, at which Entry is published.
	At    time.Time
	Entry events.Entry
}

// Registrar creates one-shot self-deleting triggers.
type Registrar interface {
	Create(ctx context.Context, t Trigger) error
}

// InProcess fires triggers from in-memory timers. A fired trigger publishes
// its entry through the same path as immediate emissions and deletes itself.
type InProcess struct {
	pub events.Publisher
	log *zap.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewInProcess(pub events.Publisher, log *zap.Logger) *InProcess {
	if log == nil {
		log = zap.NewNop()
	}
	return &InProcess{
		pub:    pub,
		log:    log,
		timers: make(map[string]*time.Timer),
	}
}

func (s *InProcess) Create(_ context.Context, t Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[t.Name]; ok {
		return ErrScheduleExists
	}
	d := time.Until(t.At)
	if d < 0 {
		d = 0
	}
	trigger := t
	s.timers[t.Name] = time.AfterFunc(d, func() { s.fire(trigger) })
	s.log.Debug("registered booking schedule",
		zap.String("name", t.Name),
		zap.Time("at", t.At),
	)
	return nil
}

func (s *InProcess) fire(t Trigger) {
	s.mu.Lock()
	delete(s.timers, t.Name)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.pub.Publish(ctx, t.Entry); err != nil {
		s.log.Error("scheduled publish failed",
			zap.String("name", t.Name),
			zap.Error(err),
		)
		return
	}
	s.log.Debug("scheduled trigger fired", zap.String("name", t.Name))
}

// Active returns the names of triggers that have not fired yet.
func (s *InProcess) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.timers))
	for name := range s.timers {
		names = append(names, name)
	}
	return names
}

// Stop cancels all pending triggers. Fired entries are not recalled.
func (s *InProcess) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, timer := range s.timers {
		timer.Stop()
		delete(s.timers, name)
	}
}

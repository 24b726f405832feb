// Package scanner implements the scan stage: authenticate, fetch candidate
// classes, filter them through the criteria pipeline and, per class, either
// emit a booking-available event immediately or register a future trigger
// for when booking opens.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/gym-booking-assistant/internal/creds"
	"github.com/example/gym-booking-assistant/internal/criteria"
	"github.com/example/gym-booking-assistant/internal/events"
	"github.com/example/gym-booking-assistant/internal/gymapi"
	"github.com/example/gym-booking-assistant/internal/gymtime"
	"github.com/example/gym-booking-assistant/internal/schedule"
)

// Trigger is the inbound invocation payload: empty for cron-style scans, or
// carrying the alias of the user to scan for.
type Trigger struct {
	UserAlias string `json:"userAlias,omitempty"`
}

type Scanner struct {
	API        *gymapi.Client
	Criteria   criteria.Criteria
	Calendar   *gymtime.Calendar
	Publisher  events.Publisher
	Registrar  schedule.Registrar
	Creds      creds.Source
	FacilityID string
	Log        *zap.Logger

	// Now is overridable in tests; defaults to the calendar's clock.
	Now func() time.Time
}

func (s *Scanner) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return s.Calendar.Now()
}

func (s *Scanner) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// Run performs one scan pass. Authentication and search failures abort the
// pass; per-class publish or schedule failures are logged and the remaining
// classes are still processed.
func (s *Scanner) Run(ctx context.Context, trig Trigger) error {
	log := s.log()

	c, err := s.Creds.Resolve(ctx, trig.UserAlias)
	if err != nil {
		return fmt.Errorf("scan: resolve credentials: %w", err)
	}
	sess, err := s.API.Login(ctx, c.Username, c.Password)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	fromDate := s.Calendar.PartitionDate(s.now())
	classes, err := s.API.SearchClasses(ctx, sess.Token, s.FacilityID, fromDate)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	matched := 0
	for _, cls := range classes {
		ok, err := s.Criteria.Matches(s.Calendar, cls)
		if err != nil {
			log.Warn("skipping class with malformed start date",
				zap.String("classId", cls.ID),
				zap.String("startDate", cls.StartDate),
				zap.Error(err),
			)
			continue
		}
		if !ok {
			continue
		}
		matched++

		// Exactly one of: immediate emission or schedule registration.
		switch cls.BookingInfo.BookingUserStatus {
		case gymapi.StatusCanBook:
			s.publishAvailable(ctx, cls, trig.UserAlias)
		case gymapi.StatusWaitingBookingOpensPremium:
			s.scheduleBooking(ctx, cls, trig.UserAlias)
		default:
			// Unexpected status: skip this class only, keep scanning.
			log.Warn("unexpected booking status, skipping class",
				zap.String("classId", cls.ID),
				zap.String("name", cls.Name),
				zap.String("status", string(cls.BookingInfo.BookingUserStatus)),
			)
		}
	}

	log.Debug("scan pass complete",
		zap.Int("classes", len(classes)),
		zap.Int("matched", matched),
	)
	return nil
}

func availablePayload(cls gymapi.Class, alias string) events.BookingAvailable {
	return events.BookingAvailable{
		ID:            cls.ID,
		Name:          cls.Name,
		StartDate:     cls.StartDate,
		PartitionDate: cls.PartitionDate,
		BookingInfo:   cls.BookingInfo,
		UserAlias:     alias,
	}
}

func (s *Scanner) publishAvailable(ctx context.Context, cls gymapi.Class, alias string) {
	log := s.log()
	log.Debug("class bookable immediately",
		zap.String("classId", cls.ID),
		zap.String("name", cls.Name),
	)

	entry, err := events.NewEntry(events.SourceScan, events.TypeClassBookingAvailable, availablePayload(cls, alias))
	if err != nil {
		log.Error("building booking-available event failed", zap.String("classId", cls.ID), zap.Error(err))
		return
	}
	if err := s.Publisher.Publish(ctx, entry); err != nil {
		log.Error("publishing booking-available event failed", zap.String("classId", cls.ID), zap.Error(err))
	}
}

func (s *Scanner) scheduleBooking(ctx context.Context, cls gymapi.Class, alias string) {
	log := s.log()

	opensOn, err := s.Calendar.Parse(cls.BookingInfo.BookingOpensOn)
	if err != nil {
		log.Error("class waiting for booking to open carries unusable bookingOpensOn",
			zap.String("classId", cls.ID),
			zap.String("bookingOpensOn", cls.BookingInfo.BookingOpensOn),
			zap.Error(err),
		)
		return
	}
	log.Debug("scheduling future booking",
		zap.String("classId", cls.ID),
		zap.String("name", cls.Name),
		zap.Time("opensOn", opensOn),
	)

	entry, err := events.NewEntry(events.SourceScan, events.TypeClassBookingAvailable, availablePayload(cls, alias))
	if err != nil {
		log.Error("building booking-available event failed", zap.String("classId", cls.ID), zap.Error(err))
		return
	}

	trig := schedule.Trigger{
		Name:  schedule.TriggerName(cls.ID),
		At:    opensOn.UTC().Truncate(time.Second),
		Entry: entry,
	}
	switch err := s.Registrar.Create(ctx, trig); {
	case errors.Is(err, schedule.ErrScheduleExists):
		// A previous scan already registered this class.
		log.Debug("booking schedule already registered", zap.String("name", trig.Name))
	case err != nil:
		log.Error("registering booking schedule failed", zap.String("name", trig.Name), zap.Error(err))
	}
}

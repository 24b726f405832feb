// Package booker implements the book stage: consume a booking-available
// event, re-validate eligibility and the cancellation window, perform the
// booking call and emit one terminal outcome event.
package booker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/gym-booking-assistant/internal/creds"
	"github.com/example/gym-booking-assistant/internal/events"
	"github.com/example/gym-booking-assistant/internal/gymapi"
	"github.com/example/gym-booking-assistant/internal/gymtime"
)

// ExtraBufferMinutes widens the cancellation window check: a class is only
// booked when it can still be un-booked this many minutes before the
// cancellation deadline.
const ExtraBufferMinutes = 60

type Booker struct {
	API       *gymapi.Client
	Calendar  *gymtime.Calendar
	Publisher events.Publisher
	Creds     creds.Source
	Log       *zap.Logger

	// RequireAlias marks multi-user deployments, where an event without a
	// user alias is a contract violation.
	RequireAlias bool

	// Now is overridable in tests; defaults to the calendar's clock.
	Now func() time.Time
}

func (b *Booker) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return b.Calendar.Now()
}

func (b *Booker) log() *zap.Logger {
	if b.Log == nil {
		return zap.NewNop()
	}
	return b.Log
}

// Handle processes one booking-available event. On the booking-call paths it
// emits exactly one terminal event (completed or failed); the two guard
// paths (ineligible status, cancellation-window violation) log and emit
// nothing. A returned error is a contract- or transport-level failure and
// also emits nothing.
func (b *Booker) Handle(ctx context.Context, entry events.Entry) error {
	log := b.log()

	avail, err := events.ParseBookingAvailable(entry.Detail)
	if err != nil {
		return fmt.Errorf("book: %w", err)
	}
	log.Debug("booking class",
		zap.String("eventId", entry.ID),
		zap.String("classId", avail.ID),
		zap.Int("partitionDate", avail.PartitionDate),
	)

	if b.RequireAlias && avail.UserAlias == "" {
		return fmt.Errorf("book: event %s: %w", entry.ID, creds.ErrAliasRequired)
	}

	// Defensive re-validation: the event may be older than the class state.
	status := avail.BookingInfo.BookingUserStatus
	if status != gymapi.StatusCanBook && status != gymapi.StatusWaitingBookingOpensPremium {
		log.Warn("class is not bookable, ignoring event",
			zap.String("classId", avail.ID),
			zap.String("status", string(status)),
		)
		return nil
	}

	start, err := b.Calendar.Parse(avail.StartDate)
	if err != nil {
		return fmt.Errorf("book: class %s: %w", avail.ID, err)
	}

	// Penalty avoidance: if the cancellation deadline (plus buffer) would
	// already be past, booking becomes an irrevocable commitment. Skip it.
	timeToStart := start.Sub(b.now())
	timeToCancel := time.Duration(avail.BookingInfo.CancellationMinutesInAdvance+ExtraBufferMinutes) * time.Minute
	if timeToStart <= timeToCancel {
		log.Warn("not enough time to safely un-book, ignoring event",
			zap.String("classId", avail.ID),
			zap.Duration("timeToStart", timeToStart),
			zap.Duration("timeToCancel", timeToCancel),
		)
		return nil
	}

	c, err := b.Creds.Resolve(ctx, avail.UserAlias)
	if err != nil {
		return fmt.Errorf("book: resolve credentials: %w", err)
	}
	sess, err := b.API.Login(ctx, c.Username, c.Password)
	if err != nil {
		return fmt.Errorf("book: %w", err)
	}

	outcome := events.BookingOutcome{
		ClassID:       avail.ID,
		Name:          avail.Name,
		StartDate:     avail.StartDate,
		PartitionDate: avail.PartitionDate,
	}

	err = b.API.BookClass(ctx, sess.Token, avail.ID, avail.PartitionDate, c.GymUserID)
	if err != nil {
		var respErr *gymapi.ResponseError
		if !errors.As(err, &respErr) {
			return fmt.Errorf("book: %w", err)
		}
		log.Error("booking rejected by the gym api",
			zap.String("classId", avail.ID),
			zap.Int("status", respErr.Status),
			zap.Any("errors", respErr.Errors),
		)
		outcome.Result = events.BookingResult{Booked: false, Errors: respErr.Errors}
		b.publishOutcome(ctx, events.TypeClassBookingFailed, outcome)
		return nil
	}

	log.Debug("class booked",
		zap.String("classId", avail.ID),
		zap.Int("partitionDate", avail.PartitionDate),
	)
	outcome.Result = events.BookingResult{Booked: true}
	b.publishOutcome(ctx, events.TypeClassBookingCompleted, outcome)
	return nil
}

// publishOutcome emits the terminal event. A publish failure is logged and
// swallowed: the booking outcome is already determined.
func (b *Booker) publishOutcome(ctx context.Context, detailType string, outcome events.BookingOutcome) {
	log := b.log()
	entry, err := events.NewEntry(events.SourceBook, detailType, outcome)
	if err != nil {
		log.Error("building outcome event failed", zap.String("classId", outcome.ClassID), zap.Error(err))
		return
	}
	if err := b.Publisher.Publish(ctx, entry); err != nil {
		log.Error("publishing outcome event failed",
			zap.String("classId", outcome.ClassID),
			zap.String("detailType", detailType),
			zap.Error(err),
		)
	}
}

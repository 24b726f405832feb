// Package events defines the booking event envelope and payloads exchanged
// between the scan and book stages, plus the RabbitMQ publisher/consumer
// that carries them.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/gym-booking-assistant/internal/gymapi"
)

const (
	SourceScan = "GymBookingAssistant.scan"
	SourceBook = "GymBookingAssistant.book"

	TypeClassBookingAvailable = "ClassBookingAvailable"
	TypeClassBookingCompleted = "ClassBookingCompleted"
	TypeClassBookingFailed    = "ClassBookingFailed"
)

// Routing keys on the topic exchange, one per detail type.
const (
	KeyBookingAvailable = "class.booking.available"
	KeyBookingCompleted = "class.booking.completed"
	KeyBookingFailed    = "class.booking.failed"
	keyOther            = "class.booking.other"
)

func RoutingKey(detailType string) string {
	switch detailType {
	case TypeClassBookingAvailable:
		return KeyBookingAvailable
	case TypeClassBookingCompleted:
		return KeyBookingCompleted
	case TypeClassBookingFailed:
		return KeyBookingFailed
	default:
		return keyOther
	}
}

// Entry is one named, typed event with a JSON detail payload.
type Entry struct {
	ID         string          `json:"id"`
	Time       time.Time       `json:"time"`
	Source     string          `json:"source"`
	DetailType string          `json:"detail-type"`
	Detail     json.RawMessage `json:"detail"`
}

// NewEntry builds an entry with a fresh id and the current UTC instant.
func NewEntry(source, detailType string, detail any) (Entry, error) {
	b, err := json.Marshal(detail)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal %s detail: %w", detailType, err)
	}
	return Entry{
		ID:         uuid.NewString(),
		Time:       time.Now().UTC(),
		Source:     source,
		DetailType: detailType,
		Detail:     b,
	}, nil
}

// Publisher delivers entries to the event bus. Publish failures are logged
// by callers, never retried and never escalated.
type Publisher interface {
	Publish(ctx context.Context, e Entry) error
}

// BookingAvailable identifies one bookable class occurrence. It carries
// enough identity (class id + partition date) for the book stage to
// re-validate rather than trust stale data blindly.
type BookingAvailable struct {
	ID            string             `json:"id"`
	Name          string             `json:"name,omitempty"`
	StartDate     string             `json:"startDate"`
	PartitionDate int                `json:"partitionDate"`
	BookingInfo   gymapi.BookingInfo `json:"bookingInfo"`
	UserAlias     string             `json:"userAlias,omitempty"`
}

// ParseBookingAvailable normalizes the two inbound payload shapes that exist
// across deployments: fields flat under detail, or nested under
// detail.class with userAlias alongside.
func ParseBookingAvailable(detail json.RawMessage) (BookingAvailable, error) {
	var nested struct {
		Class     *BookingAvailable `json:"class"`
		UserAlias string            `json:"userAlias"`
	}
	if err := json.Unmarshal(detail, &nested); err == nil && nested.Class != nil && nested.Class.ID != "" {
		out := *nested.Class
		if out.UserAlias == "" {
			out.UserAlias = nested.UserAlias
		}
		return out, nil
	}

	var flat BookingAvailable
	if err := json.Unmarshal(detail, &flat); err != nil {
		return BookingAvailable{}, fmt.Errorf("decode booking-available detail: %w", err)
	}
	if flat.ID == "" {
		return BookingAvailable{}, errors.New("booking-available detail carries no class id")
	}
	return flat, nil
}

// BookingResult is the outcome of one booking attempt. Errors is the
// verbatim error list from the gym API.
type BookingResult struct {
	Booked bool              `json:"booked"`
	Errors []gymapi.APIError `json:"errors,omitempty"`
}

// BookingOutcome is the detail payload of ClassBookingCompleted and
// ClassBookingFailed events.
type BookingOutcome struct {
	ClassID       string        `json:"classId"`
	Name          string        `json:"name,omitempty"`
	StartDate     string        `json:"startDate,omitempty"`
	PartitionDate int           `json:"partitionDate"`
	Result        BookingResult `json:"result"`
}

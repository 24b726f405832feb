package gymapi

// BookingStatus is the upstream eligibility state of the current user for a
// class occurrence. Values outside the known set pass through untouched.
type BookingStatus string

const (
	StatusCanBook                    BookingStatus = "CanBook"
	StatusWaitingBookingOpensPremium BookingStatus = "WaitingBookingOpensPremium"
	StatusCannotBook                 BookingStatus = "CannotBook"
	StatusBookingClosed              BookingStatus = "BookingClosed"
)

// BookingInfo describes the user's booking eligibility for one class.
type BookingInfo struct {
	BookingUserStatus BookingStatus `json:"bookingUserStatus"`
	// BookingOpensOn is a civil timestamp, present when the status is
	// WaitingBookingOpensPremium.
	BookingOpensOn               string `json:"bookingOpensOn,omitempty"`
	CancellationMinutesInAdvance int    `json:"cancellationMinutesInAdvance"`
}

// Class is one occurrence returned by the class-search endpoint. Fetched
// fresh per scan, never persisted.
type Class struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	IsParticipant bool        `json:"isParticipant"`
	StartDate     string      `json:"startDate"` // civil time, no zone marker
	EndDate       string      `json:"endDate,omitempty"`
	PartitionDate int         `json:"partitionDate"`
	BookingInfo   BookingInfo `json:"bookingInfo"`
}

// Session is the short-lived bearer credential returned by Login.
type Session struct {
	Token  string
	UserID string
}

type loginResponse struct {
	Token string `json:"token"`
	Data  struct {
		UserContext struct {
			ID string `json:"id"`
		} `json:"userContext"`
	} `json:"data"`
}

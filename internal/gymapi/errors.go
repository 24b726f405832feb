package gymapi

import (
	"encoding/json"
	"fmt"
)

// APIError is one entry of the errors array the gym API attaches to failed
// calls. Kept verbatim so downstream events can carry the list untouched.
type APIError struct {
	Field        string `json:"field,omitempty"`
	Type         string `json:"type,omitempty"`
	Details      string `json:"details,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Message      string `json:"message,omitempty"`
}

// ResponseError is a classified gym API failure: a non-2xx status, or a 2xx
// response whose body carries a populated errors array. The API returns some
// validation failures (e.g. booking before the class opens) with HTTP 200
// and only the errors array set, so status alone is never trusted.
type ResponseError struct {
	Status int
	Errors []APIError
}

func (e *ResponseError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("gym api error (status=%d)", e.Status)
	}
	b, err := json.Marshal(e.Errors)
	if err != nil {
		return fmt.Sprintf("gym api error (status=%d)", e.Status)
	}
	return fmt.Sprintf("gym api error (status=%d): %s", e.Status, b)
}

// Classify applies the shared error rule to a response:
// status < 200 OR status >= 300 OR body.errors present and non-empty.
// It returns nil for successful responses.
func Classify(status int, body []byte) *ResponseError {
	var env struct {
		Errors []APIError `json:"errors"`
	}
	// Some endpoints return bare JSON arrays; those can't carry an errors
	// field and the unmarshal error is irrelevant.
	_ = json.Unmarshal(body, &env)

	if status < 200 || status >= 300 || len(env.Errors) > 0 {
		return &ResponseError{Status: status, Errors: env.Errors}
	}
	return nil
}

// IsError reports whether the response classifies as a failure.
func IsError(status int, body []byte) bool {
	return Classify(status, body) != nil
}

// Package gymapi is the client for the gym-management HTTP API: login,
// class search and class booking. All calls share one error-classification
// rule (see Classify) and one masked debug-logging path.
package gymapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultCoreBaseURL     = "https://services.mywellness.com"
	DefaultCalendarBaseURL = "https://calendar.mywellness.com/v2"
	DefaultBookingBaseURL  = "https://api-exerp.mywellness.com"
)

// responseBodyMaxSizeLogged caps the size of response bodies in debug logs.
const responseBodyMaxSizeLogged = 30000

// Config carries the deployment-specific identifiers of the gym API.
type Config struct {
	CoreBaseURL     string
	CalendarBaseURL string
	BookingBaseURL  string

	ApplicationID string
	ClientID      string
	LoginDomain   string
}

type Client struct {
	hc  *http.Client
	cfg Config
	log *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Client {
	if cfg.CoreBaseURL == "" {
		cfg.CoreBaseURL = DefaultCoreBaseURL
	}
	if cfg.CalendarBaseURL == "" {
		cfg.CalendarBaseURL = DefaultCalendarBaseURL
	}
	if cfg.BookingBaseURL == "" {
		cfg.BookingBaseURL = DefaultBookingBaseURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		hc:  &http.Client{Timeout: 10 * time.Second},
		cfg: cfg,
		log: log,
	}
}

type loginRequest struct {
	Domain         string `json:"domain"`
	KeepMeLoggedIn bool   `json:"keepMeLoggedIn"`
	Username       string `json:"username"`
	Password       string `json:"password"`
}

// Login exchanges username/password for a bearer session token.
func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	url := fmt.Sprintf("%s/Application/%s/Login", c.cfg.CoreBaseURL, c.cfg.ApplicationID)
	payload := loginRequest{
		Domain:         c.cfg.LoginDomain,
		KeepMeLoggedIn: true,
		Username:       username,
		Password:       password,
	}

	status, body, err := c.do(ctx, http.MethodPost, url, "", nil, payload)
	if err != nil {
		return Session{}, fmt.Errorf("login: %w", err)
	}
	if respErr := Classify(status, body); respErr != nil {
		return Session{}, fmt.Errorf("login rejected: %w", respErr)
	}

	var res loginResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return Session{}, fmt.Errorf("login: decode response: %w", err)
	}
	if res.Token == "" {
		return Session{}, fmt.Errorf("login: response carries no token")
	}
	return Session{Token: res.Token, UserID: res.Data.UserContext.ID}, nil
}

// SearchClasses fetches all class occurrences at a facility from fromDate
// (yyyyMMdd) onward. The API offers no server-side criteria filtering, so
// callers filter the full listing themselves.
func (c *Client) SearchClasses(ctx context.Context, token, facilityID, fromDate string) ([]Class, error) {
	url := c.cfg.CalendarBaseURL + "/enduser/class/search"
	query := map[string]string{
		"facilityId": facilityID,
		"fromDate":   fromDate,
		"eventType":  "Class",
	}

	status, body, err := c.do(ctx, http.MethodGet, url, token, query, nil)
	if err != nil {
		return nil, fmt.Errorf("search classes: %w", err)
	}
	if respErr := Classify(status, body); respErr != nil {
		return nil, fmt.Errorf("search classes: %w", respErr)
	}

	var classes []Class
	if err := json.Unmarshal(body, &classes); err != nil {
		return nil, fmt.Errorf("search classes: decode response: %w", err)
	}
	return classes, nil
}

type bookRequest struct {
	PartitionDate int    `json:"partitionDate"`
	UserID        string `json:"userId"`
}

// BookClass books one class occurrence for userID. A classified API failure
// is returned as a *ResponseError so callers can surface the error list
// verbatim; any other error is a transport-level failure.
func (c *Client) BookClass(ctx context.Context, token, classID string, partitionDate int, userID string) error {
	url := fmt.Sprintf("%s/core/calendarevent/%s/book", c.cfg.BookingBaseURL, classID)
	payload := bookRequest{PartitionDate: partitionDate, UserID: userID}

	status, body, err := c.do(ctx, http.MethodPost, url, token, nil, payload)
	if err != nil {
		return fmt.Errorf("book class %s: %w", classID, err)
	}
	if respErr := Classify(status, body); respErr != nil {
		return respErr
	}
	return nil
}

// do executes one authenticated JSON request. Every request carries the
// x-mwapps-client header; request and response bodies are debug-logged with
// sensitive fields masked.
func (c *Client) do(ctx context.Context, method, rawURL, token string, query map[string]string, payload any) (int, []byte, error) {
	var reqBody []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reqBody = b
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(reqBody))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("x-mwapps-client", c.cfg.ClientID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if query != nil {
		q := req.URL.Query()
		for k, v := range query {
			q.Add(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	c.log.Debug(">>> gym api request",
		zap.String("method", method),
		zap.String("url", req.URL.String()),
		zap.String("authorization", maskBearer(req.Header.Get("Authorization"))),
		zap.String("body", maskBody(reqBody)),
	)

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}

	c.log.Debug("<<< gym api response",
		zap.Int("status", res.StatusCode),
		zap.String("method", method),
		zap.String("url", req.URL.String()),
		zap.String("body", truncate(maskBody(body), responseBodyMaxSizeLogged)),
	)
	return res.StatusCode, body, nil
}

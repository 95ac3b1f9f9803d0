package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/idilsaglam/concierge/internal/model"
)

// DefaultBaseURL matches the backend's dev server.
const DefaultBaseURL = "http://localhost:5000/api"

// Client is the HTTP gateway to the trip-planning backend. All bodies are JSON.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

type Option func(*Client)

// WithHTTPClient swaps the underlying *http.Client (timeouts, transports).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit caps outgoing requests per second. rps <= 0 disables the cap.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// --- Auth ---

func (c *Client) Register(ctx context.Context, cred model.Credentials) (model.Session, error) {
	var s model.Session
	err := c.do(ctx, http.MethodPost, "/register", cred, &s)
	return s, err
}

func (c *Client) Login(ctx context.Context, cred model.Credentials) (model.Session, error) {
	var s model.Session
	err := c.do(ctx, http.MethodPost, "/login", cred, &s)
	return s, err
}

// --- Friends ---

func (c *Client) Friends(ctx context.Context, userID int) ([]model.Friend, error) {
	var out []model.Friend
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d/friends", userID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddFriend(ctx context.Context, userID int, username string) (model.Friend, error) {
	var f model.Friend
	body := map[string]string{"username": username}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/users/%d/friends", userID), body, &f)
	return f, err
}

func (c *Client) RemoveFriend(ctx context.Context, userID, friendID int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/users/%d/friends/%d", userID, friendID), nil, nil)
}

// --- Locations ---

func (c *Client) Locations(ctx context.Context, userID int) ([]model.Location, error) {
	var out []model.Location
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d/locations", userID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddLocation(ctx context.Context, userID int, name string) (model.Location, error) {
	var l model.Location
	body := map[string]string{"name": name}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/users/%d/locations", userID), body, &l)
	return l, err
}

func (c *Client) RemoveLocation(ctx context.Context, userID, locationID int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/users/%d/locations/%d", userID, locationID), nil, nil)
}

// --- Results ---

func (c *Client) TripResults(ctx context.Context, userID int, req model.TripRequest) (model.TripResult, error) {
	var r model.TripResult
	if req.FriendIDs == nil {
		req.FriendIDs = []int{}
	}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/users/%d/results", userID), req, &r)
	return r, err
}

// do sends one JSON request. out may be nil when the response body is ignored.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s %s: rate limit: %w", method, path, err)
		}
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s %s: json marshal: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("api: %s %s failed req=%s: %v", method, path, reqID, err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	log.Printf("api: %s %s -> %d req=%s (%s)", method, path, resp.StatusCode, reqID, time.Since(start).Round(time.Millisecond))

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newError(resp.StatusCode, b)
	}
	if out == nil || len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

// Error is a non-2xx answer from the backend.
type Error struct {
	Status  int
	Message string // from the JSON body's "error" or "message"; may be empty
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

func newError(status int, body []byte) *Error {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	e := &Error{Status: status}
	if json.Unmarshal(body, &payload) == nil {
		e.Message = strings.TrimSpace(payload.Error)
		if e.Message == "" {
			e.Message = strings.TrimSpace(payload.Message)
		}
	}
	return e
}

// Message picks what to show the user for a failed call: the server's own
// message when it sent one, otherwise fallback.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

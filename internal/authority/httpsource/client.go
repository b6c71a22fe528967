// Package httpsource implements authority.RosterSource over the upstream
// roster API for deployments where the authoritative database is not
// directly reachable.
package httpsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"rostersync/internal/authority"
	"rostersync/pkg/platform/sentinel"
)

const defaultTimeout = 10 * time.Second

// Client fetches the active roster over HTTP with a bounded per-call timeout.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each roster fetch.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHTTPClient swaps the underlying client; tests use this.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// New constructs a roster API client rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rosterEntry struct {
	ID         int64  `json:"id"`
	AcademyID  int64  `json:"academy_id"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Status     string `json:"status"`
	EnrollType string `json:"enroll_type"`
	StartDate  string `json:"start_date"`
}

func (c *Client) FetchActiveRoster(ctx context.Context, academyID int64) ([]authority.Member, error) {
	url := fmt.Sprintf("%s/academies/%d/roster/active", c.baseURL, academyID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build roster request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch roster: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("academy %d: %w", academyID, sentinel.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch roster: status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}

	var entries []rosterEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}

	members := make([]authority.Member, 0, len(entries))
	for _, e := range entries {
		m := authority.Member{
			ID:         e.ID,
			AcademyID:  e.AcademyID,
			NameEnc:    e.Name,
			PhoneEnc:   e.Phone,
			Status:     authority.Status(e.Status),
			EnrollType: e.EnrollType,
		}
		if e.StartDate != "" {
			if t, err := time.Parse("2006-01-02", e.StartDate); err == nil {
				m.StartDate = t
			}
		}
		members = append(members, m)
	}
	return members, nil
}

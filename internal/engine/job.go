// Package engine runs the external transfer tool for a single job and turns
// its streamed output into progress events.
package engine

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/kilimcininkoroglu/dogan/internal/media"
)

// Job describes one transfer. It is not modified once started.
type Job struct {
	ID          string
	URL         string
	Mode        media.Mode
	Selector    string // empty lets the tool auto-select
	Destination string
	Expect      *Checksum // optional digest the output must match
}

// NewJob validates the URL and returns a job with a fresh ID.
func NewJob(rawURL string, mode media.Mode, selector, destination string) (Job, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := ValidateURL(rawURL); err != nil {
		return Job{}, err
	}
	if destination == "" {
		destination = "."
	}
	return Job{
		ID:          uuid.NewString(),
		URL:         rawURL,
		Mode:        mode,
		Selector:    strings.TrimSpace(selector),
		Destination: destination,
	}, nil
}

// ValidateURL checks that s is an absolute http(s) URL.
func ValidateURL(s string) error {
	if s == "" {
		return fmt.Errorf("empty URL")
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host: %s", s)
	}
	return nil
}

// ShortID returns the first block of the job ID, for log prefixes.
func (j Job) ShortID() string {
	if i := strings.IndexByte(j.ID, '-'); i > 0 {
		return j.ID[:i]
	}
	return j.ID
}

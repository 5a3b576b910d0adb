// Package captcha resolves reCAPTCHA site keys into challenge tokens.
package captcha

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"
)

// DefaultEndpoint serves the legacy challenge script for a site key.
const DefaultEndpoint = "https://www.google.com/recaptcha/api/challenge"

// ErrChallengeNotFound is returned when the response carries no challenge.
var ErrChallengeNotFound = errors.New("reCAPTCHA challenge resolution failed")

var challengePattern = regexp.MustCompile(` {4}challenge : '(.+?)',\n`)

// Resolver fetches challenge tokens over HTTP.
type Resolver struct {
	endpoint string
	client   *http.Client
}

// NewResolver creates a resolver. An empty endpoint uses DefaultEndpoint.
func NewResolver(endpoint string, client *http.Client) *Resolver {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Resolver{endpoint: endpoint, client: client}
}

// Resolve returns the challenge token for siteKey.
func (r *Resolver) Resolve(ctx context.Context, siteKey string) (string, error) {
	u, err := url.Parse(r.endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to parse challenge endpoint: %w", err)
	}
	q := u.Query()
	q.Set("k", siteKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build challenge request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch challenge: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read challenge: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("GET challenge: %d %s", resp.StatusCode, string(body))
	}

	return Extract(string(body))
}

// Extract pulls the challenge token out of a challenge script.
func Extract(body string) (string, error) {
	m := challengePattern.FindStringSubmatch(body)
	if m == nil || m[1] == "" {
		return "", ErrChallengeNotFound
	}
	return m[1], nil
}

// Package webtransport implements stranger.Transport over the service's
// plain HTTP endpoints.
package webtransport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/glebk/stranger-bot/internal/stranger"
)

const (
	DefaultDomain    = "omegle.com"
	DefaultLanguage  = "en"
	DefaultUserAgent = "Mozilla/5.0 (compatible; stranger-bot)"

	randIDChars = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
)

// Config configures the transport. Zero values fall back to defaults.
type Config struct {
	Domain    string
	Scheme    string
	Language  string
	UserAgent string
	Client    *http.Client
}

// Transport talks to the service over HTTP.
type Transport struct {
	domain    string
	scheme    string
	language  string
	userAgent string
	randID    string
	client    *http.Client
}

var _ stranger.Transport = (*Transport)(nil)

// New creates a transport with a fresh random client id.
func New(cfg Config) *Transport {
	t := &Transport{
		domain:    cfg.Domain,
		scheme:    cfg.Scheme,
		language:  cfg.Language,
		userAgent: cfg.UserAgent,
		client:    cfg.Client,
		randID:    NewRandID(),
	}
	if t.domain == "" {
		t.domain = DefaultDomain
	}
	if t.scheme == "" {
		t.scheme = "http"
	}
	if t.language == "" {
		t.language = DefaultLanguage
	}
	if t.userAgent == "" {
		t.userAgent = DefaultUserAgent
	}
	if t.client == nil {
		// No timeout: event fetches are held open by the server.
		t.client = &http.Client{}
	}
	return t
}

// randIDBytes are the uuid bytes that carry only random bits. Bytes 6 and 8
// hold the version and variant.
var randIDBytes = [8]int{0, 1, 2, 3, 4, 5, 7, 9}

// NewRandID returns an 8 character client id drawn uniformly from the
// service's alphabet.
func NewRandID() string {
	u := uuid.New()
	var b strings.Builder
	for _, i := range randIDBytes {
		b.WriteByte(randIDChars[int(u[i])%len(randIDChars)])
	}
	return b.String()
}

// RandID returns the client id sent with bootstrap and start calls.
func (t *Transport) RandID() string {
	return t.randID
}

type statusResponse struct {
	Servers    []string `json:"servers"`
	ForceUnmon bool     `json:"force_unmon"`
}

// Bootstrap fetches the server pool.
func (t *Transport) Bootstrap(ctx context.Context) (stranger.BootstrapInfo, error) {
	q := url.Values{}
	q.Set("nocache", strconv.FormatFloat(rand.Float64(), 'f', -1, 64))
	q.Set("randid", t.randID)

	var out statusResponse
	if err := t.post(ctx, t.baseURL()+"/status", q, nil, &out); err != nil {
		return stranger.BootstrapInfo{}, err
	}
	return stranger.BootstrapInfo{Servers: out.Servers, ForceUnmonitored: out.ForceUnmon}, nil
}

type startResponse struct {
	ClientID string           `json:"clientID"`
	Events   []stranger.Event `json:"events"`
}

// Start opens a conversation on server.
func (t *Transport) Start(ctx context.Context, server string, req stranger.StartRequest) (stranger.StartResponse, error) {
	q := url.Values{}
	q.Set("rcs", "1")
	q.Set("firstevents", "1")
	q.Set("randid", t.randID)
	q.Set("spid", "")
	q.Set("lang", t.language)
	if len(req.Topics) > 0 {
		topics, err := json.Marshal(req.Topics)
		if err != nil {
			return stranger.StartResponse{}, fmt.Errorf("failed to encode topics: %w", err)
		}
		q.Set("topics", string(topics))
	}
	if req.Unmonitored {
		q.Set("group", "unmon")
	}

	var out startResponse
	if err := t.post(ctx, t.serverURL(server)+"/start", q, nil, &out); err != nil {
		return stranger.StartResponse{}, err
	}
	if out.ClientID == "" {
		return stranger.StartResponse{}, fmt.Errorf("start response without client id")
	}
	return stranger.StartResponse{ID: out.ClientID, Events: out.Events}, nil
}

// FetchEvents long polls for the next event batch.
func (t *Transport) FetchEvents(ctx context.Context, server, id string) ([]stranger.Event, error) {
	var events []stranger.Event
	if err := t.post(ctx, t.serverURL(server)+"/events", nil, url.Values{"id": {id}}, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Action posts a session action. The response body is not interpreted.
func (t *Transport) Action(ctx context.Context, server, id string, action stranger.Action, payload map[string]string) error {
	form := url.Values{"id": {id}}
	for k, v := range payload {
		form.Set(k, v)
	}
	return t.post(ctx, t.serverURL(server)+"/"+string(action), nil, form, nil)
}

func (t *Transport) baseURL() string {
	return t.scheme + "://" + t.domain
}

func (t *Transport) serverURL(server string) string {
	return t.scheme + "://" + server + "." + t.domain
}

func (t *Transport) post(ctx context.Context, endpoint string, query, form url.Values, out any) error {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US;q=0.6,en;q=0.4")
	req.Header.Set("Origin", t.baseURL())
	req.Header.Set("Referer", t.baseURL())
	req.Header.Set("User-Agent", t.userAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("POST %s: %d %s", req.URL.Path, resp.StatusCode, string(respBody))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

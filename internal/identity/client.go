package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://sessionserver.mojang.com/session/minecraft/profile"
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "go-revival/1.0"
)

// Fetcher performs the remote profile lookup.
type Fetcher interface {
	Fetch(ctx context.Context, owner uuid.UUID) (*Descriptor, error)
}

type HTTPFetcher struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
}

type HTTPFetcherOpt func(*HTTPFetcher)

func WithBaseURL(u string) HTTPFetcherOpt {
	return func(f *HTTPFetcher) {
		f.baseURL = strings.TrimRight(u, "/")
	}
}

func WithHTTPClient(c *http.Client) HTTPFetcherOpt {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

// WithRateLimit throttles outgoing lookups to rps with the given burst.
func WithRateLimit(rps float64, burst int) HTTPFetcherOpt {
	return func(f *HTTPFetcher) {
		if rps <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

func NewHTTPFetcher(opts ...HTTPFetcherOpt) *HTTPFetcher {
	f := &HTTPFetcher{
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		client:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type profileResponse struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Properties []profileProperty `json:"properties"`
}

type profileProperty struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Signature string `json:"signature,omitempty"`
}

func (f *HTTPFetcher) Fetch(ctx context.Context, owner uuid.UUID) (*Descriptor, error) {
	if owner.Version() == 3 {
		return nil, ErrOffline
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	url := fmt.Sprintf("%s/%s?unsigned=false", f.baseURL, strings.ReplaceAll(owner.String(), "-", ""))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting profile: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case http.StatusNoContent, http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var profile profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}

	for _, p := range profile.Properties {
		if p.Name == "textures" && p.Value != "" {
			return &Descriptor{Value: p.Value, Signature: p.Signature}, nil
		}
	}
	return nil, ErrNoTextures
}

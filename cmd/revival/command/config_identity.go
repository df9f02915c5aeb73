package command

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-revival/internal/identity"
)

type IdentityConfig struct {
	BaseURL       string  `json:"base_url" env:"BASE_URL"`
	Timeout       string  `json:"timeout" env:"TIMEOUT"`
	PositiveTTL   string  `json:"positive_ttl" env:"POSITIVE_TTL"`
	NegativeTTL   string  `json:"negative_ttl" env:"NEGATIVE_TTL"`
	RatePerSecond float64 `json:"rate_per_second" env:"RATE_PER_SECOND"`
	Burst         int     `json:"burst" env:"BURST"`
}

func (c *IdentityConfig) validate() error {
	el := errors.NewErrorList()

	for name, v := range map[string]string{
		"timeout":      c.Timeout,
		"positive_ttl": c.PositiveTTL,
		"negative_ttl": c.NegativeTTL,
	} {
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			el.Add(fmt.Errorf("identity: parsing %s: %w", name, err))
		} else if d <= 0 {
			el.Add(fmt.Errorf("identity: %s must be positive", name))
		}
	}
	if c.RatePerSecond < 0 {
		el.Add(fmt.Errorf("identity: rate_per_second must not be negative"))
	}
	if c.Burst < 0 {
		el.Add(fmt.Errorf("identity: burst must not be negative"))
	}

	return el.Err()
}

// duration parses v, falling back to def when unset. Validate has already
// rejected malformed values.
func duration(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func (c *IdentityConfig) BuildResolver(local identity.LocalSource) *identity.Resolver {
	opts := []identity.HTTPFetcherOpt{
		identity.WithHTTPClient(&http.Client{Timeout: duration(c.Timeout, identity.DefaultTimeout)}),
		identity.WithRateLimit(c.RatePerSecond, c.Burst),
	}
	if c.BaseURL != "" {
		opts = append(opts, identity.WithBaseURL(c.BaseURL))
	}

	return identity.NewResolver(
		identity.NewHTTPFetcher(opts...),
		identity.WithLocalSource(local),
		identity.WithTTL(
			duration(c.PositiveTTL, identity.DefaultPositiveTTL),
			duration(c.NegativeTTL, identity.DefaultNegativeTTL),
		),
	)
}

package geocode

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/acceslibre/erpsync/internal/resilience"
)

// Outcomes reported to the chain observer.
const (
	OutcomeHit      = "hit"
	OutcomeMiss     = "miss"
	OutcomeLowScore = "low_score"
	OutcomeError    = "error"
	OutcomeSkipped  = "circuit_open"
	OutcomeCached   = "cached"
)

// Chain tries providers in order and returns the first result whose score
// reaches the minimum. Provider errors, empty answers and low scores fall
// through to the next provider.
type Chain struct {
	providers []Provider
	breakers  map[string]*resilience.Breaker
	minScore  float64
	timeout   time.Duration
	cache     Cache
	courtesy  time.Duration
	observe   func(provider, outcome string)
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithMinScore sets the minimum accepted score. Default 0.4.
func WithMinScore(s float64) ChainOption {
	return func(c *Chain) { c.minScore = s }
}

// WithTimeout sets the per-provider call timeout. Default 8s.
func WithTimeout(d time.Duration) ChainOption {
	return func(c *Chain) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCache stores accepted results and serves repeated queries from it.
func WithCache(cache Cache) ChainOption {
	return func(c *Chain) { c.cache = cache }
}

// WithBreakers skips a provider after threshold consecutive failures until
// reset has elapsed.
func WithBreakers(threshold int, reset time.Duration) ChainOption {
	return func(c *Chain) {
		for _, p := range c.providers {
			c.breakers[p.Name()] = resilience.NewBreaker("geocode."+p.Name(), threshold, reset)
		}
	}
}

// WithCourtesyDelay sleeps after every provider call.
func WithCourtesyDelay(d time.Duration) ChainOption {
	return func(c *Chain) { c.courtesy = d }
}

// WithObserver receives one outcome per provider consulted.
func WithObserver(fn func(provider, outcome string)) ChainOption {
	return func(c *Chain) { c.observe = fn }
}

// NewChain creates a Chain over providers, in priority order.
func NewChain(providers []Provider, opts ...ChainOption) *Chain {
	c := &Chain{
		providers: providers,
		breakers:  make(map[string]*resilience.Breaker, len(providers)),
		minScore:  0.4,
		timeout:   8 * time.Second,
		observe:   func(string, string) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Providers returns the provider names in chain order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Geocode implements Client.
func (c *Chain) Geocode(ctx context.Context, addr AddressInput, opts ...CallOption) (*Result, error) {
	if addr.empty() {
		return nil, nil
	}

	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}

	start := 0
	if co.startAt != "" {
		start = -1
		for i, p := range c.providers {
			if p.Name() == co.startAt {
				start = i
				break
			}
		}
		if start < 0 {
			return nil, eris.Errorf("geocode: unknown provider %q", co.startAt)
		}
	}

	// Cached results always came from the head of the chain.
	useCache := c.cache != nil && start == 0
	key := CacheKey(addr)
	if useCache {
		if cached, ok, err := c.cache.Get(ctx, key); err != nil {
			zap.L().Warn("geocode: cache lookup failed", zap.Error(err))
		} else if ok {
			c.observe(cached.Provider, OutcomeCached)
			return cached, nil
		}
	}

	log := zap.L().With(zap.String("component", "geocode"), zap.String("query", addr.Query))
	for _, p := range c.providers[start:] {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "geocode: cancelled")
		}

		breaker := c.breakers[p.Name()]
		if breaker.Open() {
			c.observe(p.Name(), OutcomeSkipped)
			continue
		}

		r, err := c.call(ctx, breaker, p, addr)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "geocode: cancelled")
			}
			log.Debug("geocode: provider failed, trying next", zap.String("provider", p.Name()), zap.Error(err))
			c.observe(p.Name(), OutcomeError)
			continue
		}
		if r == nil {
			c.observe(p.Name(), OutcomeMiss)
			continue
		}
		if r.Score < c.minScore {
			log.Debug("geocode: score below threshold",
				zap.String("provider", p.Name()),
				zap.Float64("score", r.Score),
				zap.Float64("min_score", c.minScore),
			)
			c.observe(p.Name(), OutcomeLowScore)
			continue
		}

		c.observe(p.Name(), OutcomeHit)
		if useCache {
			if err := c.cache.Put(ctx, key, r); err != nil {
				log.Warn("geocode: cache store failed", zap.Error(err))
			}
		}
		return r, nil
	}
	return nil, nil
}

func (c *Chain) call(ctx context.Context, b *resilience.Breaker, p Provider, addr AddressInput) (*Result, error) {
	pctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	r, err := resilience.Execute(pctx, b, func(ctx context.Context) (*Result, error) {
		return p.Geocode(ctx, addr)
	})

	if c.courtesy > 0 {
		t := time.NewTimer(c.courtesy)
		select {
		case <-ctx.Done():
		case <-t.C:
		}
		t.Stop()
	}
	return r, err
}

// Endpoints lists provider base URLs by provider name.
type Endpoints struct {
	BAN           string
	Geoplateforme string
	OSM           string
	UserAgent     string
}

// NewProviders builds providers for names, in order.
func NewProviders(names []string, ep Endpoints, hc *http.Client) ([]Provider, error) {
	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		switch name {
		case ProviderBAN:
			providers = append(providers, NewAdresseProvider(ProviderBAN, ep.BAN, hc))
		case ProviderGeoplateforme:
			providers = append(providers, NewAdresseProvider(ProviderGeoplateforme, ep.Geoplateforme, hc))
		case ProviderOSM:
			providers = append(providers, NewOSMProvider(ep.OSM, ep.UserAgent, hc))
		default:
			return nil, eris.Errorf("geocode: unknown provider %q", name)
		}
	}
	return providers, nil
}

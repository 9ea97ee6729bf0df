// internal/adapters/airdna/client.go
package airdna

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"rentalyzer/internal/adapters/observability"
	"rentalyzer/internal/domain"
)

const (
	estimatePath = "/rentalizer/estimate"
	maxBodyBytes = 8 << 20
)

var (
	ErrBadStatus   = errors.New("airdna: bad status")
	ErrCircuitOpen = errors.New("airdna: circuit open")

	// errCallerGone marks calls abandoned by the caller; they say nothing about provider health.
	errCallerGone = errors.New("airdna: caller gone")
)

// StatusError is a non-2xx answer. It matches ErrBadStatus, and a 404 also
// matches domain.ErrNotFound.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v %d: %s", ErrBadStatus, e.Code, e.Body)
}

func (e *StatusError) Unwrap() []error {
	if e.Code == http.StatusNotFound {
		return []error{ErrBadStatus, domain.ErrNotFound}
	}
	return []error{ErrBadStatus}
}

// countsAgainstProvider reports whether err says the provider is unhealthy.
// Caller-side 4xx (other than 429) and abandoned calls do not.
func countsAgainstProvider(err error) bool {
	if err == nil || errors.Is(err, errCallerGone) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
		return se.Code == http.StatusTooManyRequests
	}
	return true
}

type Options struct {
	RPS     int
	Timeout time.Duration
	// consecutive failures before the breaker opens; 0 means 5
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

type Client struct {
	base    string
	key     string
	hc      *http.Client
	timeout time.Duration
	rl      *rate.Limiter
	cb      *gobreaker.CircuitBreaker
}

func New(base, key string, opts Options) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if opts.RPS <= 0 {
		opts.RPS = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 30 * time.Second
	}

	st := gobreaker.Settings{Name: "airdna", Timeout: opts.BreakerCooldown}
	st.IsSuccessful = func(err error) bool { return !countsAgainstProvider(err) }
	failures := opts.BreakerFailures
	st.ReadyToTrip = func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= failures }
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("provider breaker state change")
	}

	return &Client{
		base:    strings.TrimRight(base, "/"),
		key:     key,
		hc:      &http.Client{Timeout: opts.Timeout},
		timeout: opts.Timeout,
		rl:      rate.NewLimiter(rate.Limit(opts.RPS), opts.RPS),
		cb:      gobreaker.NewCircuitBreaker(st),
	}, nil
}

type estimateRequest struct {
	Address      string   `json:"address"`
	Bedrooms     *int     `json:"bedrooms,omitempty"`
	Bathrooms    *float64 `json:"bathrooms,omitempty"`
	Accommodates *int     `json:"accommodates,omitempty"`
}

// FetchProperty performs exactly one bounded call. Any non-2xx, transport error,
// timeout or open breaker comes back as an error; callers must not retry.
func (c *Client) FetchProperty(ctx context.Context, q domain.PropertyQuery) (json.RawMessage, error) {
	body, err := json.Marshal(estimateRequest{
		Address:      q.Address,
		Bedrooms:     q.Bedrooms,
		Bathrooms:    q.Bathrooms,
		Accommodates: q.Accommodates,
	})
	if err != nil {
		return nil, err
	}

	out, err := c.cb.Execute(func() (interface{}, error) {
		return c.post(ctx, c.base+estimatePath, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return nil, err
	}
	return out.(json.RawMessage), nil
}

func (c *Client) post(parent context.Context, url string, body []byte) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	// client-side rate limiting, bounded by the same deadline
	if err := c.rl.Wait(ctx); err != nil {
		if parent.Err() != nil {
			return nil, fmt.Errorf("%w: %w", errCallerGone, parent.Err())
		}
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "rentalyzer/1.0")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("airdna", estimatePath, 0, time.Since(start))
		if parent.Err() != nil {
			return nil, fmt.Errorf("%w: %w", errCallerGone, parent.Err())
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("airdna: %w", ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()
	observability.ObserveExternal("airdna", estimatePath, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// read a small error body for diagnostics
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	// shape validation is the reconciler's job
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

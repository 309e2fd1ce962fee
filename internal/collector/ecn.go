package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"EarningsSentinel/internal/model"
)

// DefaultECNBaseURL is the public earningscalendar.net endpoint.
const DefaultECNBaseURL = "https://api.earningscalendar.net/"

// ErrMalformedResponse reports an upstream body that could not be understood.
var ErrMalformedResponse = errors.New("malformed response")

// StatusError reports an unexpected HTTP status from the upstream API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d, body: %s", e.StatusCode, e.Body)
}

// ECNOptions configures an ECNFetcher.
type ECNOptions struct {
	BaseURL          string
	MinInterval      time.Duration // minimum spacing between requests
	Timeout          time.Duration
	MaxTries         uint
	RetryInterval    time.Duration // initial backoff between failed attempts
	IncludeMarketCap bool
	Proxy            string
}

// ECNFetcher implements Fetcher against the earningscalendar.net API.
// Requests are spaced at least MinInterval apart.
type ECNFetcher struct {
	BaseURL          string
	IncludeMarketCap bool
	Client           *http.Client

	limiter       *rate.Limiter
	maxTries      uint
	retryInterval time.Duration
}

// NewECNFetcher creates a fetcher with optional proxy support.
func NewECNFetcher(opts ECNOptions) *ECNFetcher {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultECNBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxTries == 0 {
		opts.MaxTries = 3
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Second
	}

	transport := &http.Transport{}
	if opts.Proxy != "" {
		if u, err := url.Parse(opts.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}

	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}

	return &ECNFetcher{
		BaseURL:          opts.BaseURL,
		IncludeMarketCap: opts.IncludeMarketCap,
		Client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		limiter:       rate.NewLimiter(limit, 1),
		maxTries:      opts.MaxTries,
		retryInterval: opts.RetryInterval,
	}
}

func (f *ECNFetcher) Name() string { return "earningscalendar.net" }

// ecnAnnouncement is the JSON shape returned by the API.
type ecnAnnouncement struct {
	Ticker string   `json:"ticker"`
	When   string   `json:"when"`
	CapMM  capValue `json:"cap_mm"`
}

// capValue accepts market caps sent either as numbers or as strings with
// thousands separators ("2,329").
type capValue struct {
	decimal.NullDecimal
}

func (c *capValue) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	s = strings.ReplaceAll(strings.Trim(s, `"`), ",", "")
	if s == "" || s == "--" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("parse cap_mm %q: %w", s, err)
	}
	c.NullDecimal = decimal.NewNullDecimal(d)
	return nil
}

// FetchDay waits for the rate limiter, then requests the announcements for day.
// Transport errors, 429 and 5xx responses are retried with exponential backoff.
func (f *ECNFetcher) FetchDay(ctx context.Context, day time.Time) ([]model.Announcement, error) {
	day = model.DateOf(day)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.retryInterval

	attempt := 0
	raw, err := backoff.Retry(ctx, func() ([]ecnAnnouncement, error) {
		attempt++
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		return f.request(ctx, day)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(f.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Printf("[WARN] earnings fetch for %s failed (attempt %d/%d): %v, retrying in %v",
				model.DateKey(day), attempt, f.maxTries, err, next)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch earnings for %s: %w", model.DateKey(day), err)
	}

	anns := make([]model.Announcement, 0, len(raw))
	for _, r := range raw {
		ticker := strings.TrimSpace(r.Ticker)
		if ticker == "" {
			return nil, fmt.Errorf("fetch earnings for %s: %w: announcement without ticker", model.DateKey(day), ErrMalformedResponse)
		}
		a := model.NewAnnouncement(day, ticker, model.ParseWhen(r.When))
		if f.IncludeMarketCap && r.CapMM.Valid {
			a = a.WithMarketCap(r.CapMM.Decimal)
		}
		anns = append(anns, a)
	}
	return anns, nil
}

func (f *ECNFetcher) request(ctx context.Context, day time.Time) ([]ecnAnnouncement, error) {
	u, err := url.Parse(f.BaseURL)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("parse base url: %w", err))
	}
	q := u.Query()
	q.Set("date", day.Format("20060102"))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("earnings request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			return nil, backoff.RetryAfter(secs)
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	case resp.StatusCode >= 500:
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(&StatusError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	var raw []ecnAnnouncement
	if err := json.Unmarshal(bytes.TrimSpace(body), &raw); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: %w", ErrMalformedResponse, err))
	}
	return raw, nil
}

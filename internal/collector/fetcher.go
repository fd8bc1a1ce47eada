package collector

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"TwoDSentinel/internal/model"
)

// ErrQuote wraps every failure to obtain a usable quote: transport, status, markup or parsing.
var ErrQuote = errors.New("quote unavailable")

// Source produces the current index snapshot.
type Source interface {
	Fetch(ctx context.Context) (model.Snapshot, error)
	Name() string
}

const (
	DefaultTimeout   = 8 * time.Second
	DefaultRateLimit = 1 // requests per second
)

// Option configures an HTTP-backed source.
type Option func(*httpSource)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *httpSource) {
		s.client.Timeout = timeout
	}
}

// WithRateLimit caps outbound requests per second. Zero or less disables the limiter.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(s *httpSource) {
		if requestsPerSecond <= 0 {
			s.limiter = nil
			return
		}
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithProxy routes requests through the given proxy URL.
func WithProxy(proxyURL string) Option {
	return func(s *httpSource) {
		if proxyURL == "" {
			return
		}
		if u, err := url.Parse(proxyURL); err == nil {
			s.client.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
		}
	}
}

// WithClock overrides the function used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *httpSource) {
		s.now = now
	}
}

// httpSource holds what the HTTP sources share: client, limiter and the business-zone clock.
type httpSource struct {
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

func newHTTPSource(loc *time.Location, opts []Option) httpSource {
	if loc == nil {
		loc = time.Local
	}
	s := httpSource{
		client:  &http.Client{Timeout: DefaultTimeout, Transport: &http.Transport{}},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		now:     func() time.Time { return time.Now().In(loc) },
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s *httpSource) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// stamp builds a snapshot for the given upstream strings at the current instant.
func (s *httpSource) stamp(set, value string) (model.Snapshot, error) {
	twoD, err := DeriveTwoD(set, value)
	if err != nil {
		return model.Snapshot{}, err
	}
	now := s.now()
	return model.Snapshot{
		Date:  now.Format(model.DateLayout),
		Time:  now.Format(model.TimeLayout),
		Set:   set,
		Value: value,
		TwoD:  twoD,
	}, nil
}

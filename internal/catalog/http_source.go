package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

const maxCatalogBytes = 8 << 20

// HTTPSource fetches the catalog as a JSON array of chapters.
type HTTPSource struct {
	url      string
	client   *http.Client
	attempts uint
	delay    time.Duration
}

// HTTPSourceOption configures an HTTPSource.
type HTTPSourceOption func(*HTTPSource)

// WithHTTPClient sets the HTTP client used for catalog requests.
func WithHTTPClient(c *http.Client) HTTPSourceOption {
	return func(s *HTTPSource) { s.client = c }
}

// WithRetry sets the retry attempts and base delay.
func WithRetry(attempts uint, delay time.Duration) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.attempts = attempts
		s.delay = delay
	}
}

// NewHTTPSource creates a catalog source reading from url.
func NewHTTPSource(url string, opts ...HTTPSourceOption) *HTTPSource {
	s := &HTTPSource{
		url:      url,
		client:   &http.Client{Timeout: 15 * time.Second},
		attempts: 3,
		delay:    500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var errPermanent = errors.New("permanent catalog error")

func (s *HTTPSource) Chapters(ctx context.Context) ([]Chapter, error) {
	var chapters []Chapter
	err := retry.Do(
		func() error {
			chs, err := s.fetch(ctx)
			if err != nil {
				return err
			}
			chapters = chs
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return !errors.Is(err, errPermanent) }),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return chapters, nil
}

func (s *HTTPSource) fetch(ctx context.Context) ([]Chapter, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errPermanent, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("catalog API error %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: catalog API error %d", errPermanent, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBytes))
	if err != nil {
		return nil, err
	}

	var chapters []Chapter
	if err := json.Unmarshal(body, &chapters); err != nil {
		return nil, fmt.Errorf("%w: decoding catalog: %v", errPermanent, err)
	}
	return chapters, nil
}

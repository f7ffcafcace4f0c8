// Package content fetches per-topic learning material and keeps stale
// responses from overwriting newer navigation.
package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const maxContentBytes = 4 << 20

// ErrContentNotFound means a topic has no usable content. It is localized
// to that topic.
var ErrContentNotFound = errors.New("content not found")

// Content is the raw material for one topic, typically markdown.
type Content struct {
	TopicID     string `json:"topicId"`
	Body        string `json:"body"`
	ContentType string `json:"contentType,omitempty"`
}

// Fetcher loads content for a topic id.
type Fetcher interface {
	Fetch(ctx context.Context, topicID string) (Content, error)
}

// HTTPFetcher reads {base}/{topicID}.
type HTTPFetcher struct {
	baseURL  string
	client   *http.Client
	attempts uint
	delay    time.Duration
}

// NewHTTPFetcher creates a fetcher. attempts covers transport errors and
// 5xx responses; anything else fails immediately.
func NewHTTPFetcher(baseURL string, timeout time.Duration, attempts uint) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if attempts == 0 {
		attempts = 1
	}
	return &HTTPFetcher{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		attempts: attempts,
		delay:    200 * time.Millisecond,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, topicID string) (Content, error) {
	if topicID == "" {
		return Content{}, ErrContentNotFound
	}

	var c Content
	err := retry.Do(
		func() error {
			got, err := f.fetchOnce(ctx, topicID)
			if err != nil {
				return err
			}
			c = got
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(f.attempts),
		retry.Delay(f.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrContentNotFound) && ctx.Err() == nil
		}),
	)
	if err != nil {
		if errors.Is(err, ErrContentNotFound) || ctx.Err() != nil {
			return Content{}, err
		}
		return Content{}, fmt.Errorf("%w: %v", ErrContentNotFound, err)
	}
	return c, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, topicID string) (Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/"+url.PathEscape(topicID), nil)
	if err != nil {
		return Content{}, fmt.Errorf("%w: %v", ErrContentNotFound, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Content{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		return Content{}, fmt.Errorf("content API error %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Content{}, fmt.Errorf("%w: %s returned %d", ErrContentNotFound, topicID, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxContentBytes))
	if err != nil {
		return Content{}, err
	}

	ct := resp.Header.Get("Content-Type")
	if LooksLikeErrorPage(ct, body) {
		return Content{}, fmt.Errorf("%w: %s returned an HTML page", ErrContentNotFound, topicID)
	}

	return Content{TopicID: topicID, Body: string(body), ContentType: ct}, nil
}

// LooksLikeErrorPage reports whether a payload is an HTML document rather
// than topic text, as served by SPA fallbacks and proxies.
func LooksLikeErrorPage(contentType string, body []byte) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt == "text/html" {
		return true
	}
	head := bytes.ToLower(bytes.TrimSpace(body))
	if len(head) > 64 {
		head = head[:64]
	}
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

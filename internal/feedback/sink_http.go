package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPSink posts submissions to a request/response feedback API.
//
//	POST {base}/feedback  <- {"userIdentity":..., "topicId":..., "rating":..., "message":..., "timestamp":...}
type HTTPSink struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSink creates a Sink backed by the feedback API at baseURL.
func NewHTTPSink(baseURL string, client *http.Client) *HTTPSink {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSink{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (s *HTTPSink) Submit(ctx context.Context, sub Submission) error {
	payload, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("%w: marshal feedback: %v", ErrFeedbackSubmitFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/feedback", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFeedbackSubmitFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: post feedback: %v", ErrFeedbackSubmitFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: feedback API error %d", ErrFeedbackSubmitFailed, resp.StatusCode)
	}
	return nil
}

package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPStore talks to a request/response progress API.
//
//	GET  {base}/progress/{user}  -> [{"id":..., "completed":...}] or {"<id>": bool}
//	POST {base}/progress         <- {"userIdentity":..., "topicId":...}
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStore creates a Store backed by the progress API at baseURL.
func NewHTTPStore(baseURL string, client *http.Client) *HTTPStore {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type progressItem struct {
	ID        string `json:"id"`
	Completed bool   `json:"completed"`
}

type markRequest struct {
	UserIdentity string `json:"userIdentity"`
	TopicID      string `json:"topicId"`
}

func (s *HTTPStore) Load(ctx context.Context, userID string) (Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"/progress/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch progress: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return Record{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("progress API error %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read progress: %w", err)
	}
	return decodeRecord(body)
}

// decodeRecord accepts either the array or the map form.
func decodeRecord(body []byte) (Record, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Record{}, nil
	}

	rec := make(Record)
	switch trimmed[0] {
	case '[':
		var items []progressItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode progress list: %w", err)
		}
		for _, it := range items {
			if it.ID != "" {
				rec[it.ID] = rec[it.ID] || it.Completed
			}
		}
	case '{':
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			return nil, fmt.Errorf("decode progress map: %w", err)
		}
	default:
		return nil, fmt.Errorf("unexpected progress payload")
	}
	return rec, nil
}

func (s *HTTPStore) MarkComplete(ctx context.Context, userID, topicID string) error {
	payload, err := json.Marshal(markRequest{UserIdentity: userID, TopicID: topicID})
	if err != nil {
		return fmt.Errorf("marshal progress update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/progress", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post progress: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("progress API error %d", resp.StatusCode)
	}
	return nil
}

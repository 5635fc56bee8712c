package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNoCredential is returned when a store call is attempted without a bearer
// credential. Callers treat it as "logged out, skip", not as a failure.
var ErrNoCredential = errors.New("no credential, store call skipped")

// ListResult is one page of notifications plus pagination metadata.
type ListResult struct {
	Items   []Notification
	Total   int64
	Page    int
	Size    int
	HasMore bool
}

// Store is the request/response interface the cache depends on. StoreClient
// implements it over HTTP; tests substitute an in-memory fake.
type Store interface {
	List(ctx context.Context, page, size int) (*ListResult, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}

// StoreClient talks to the notification store REST API with a bearer
// credential.
type StoreClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewStoreClient creates a store client. token may be empty; every call is
// then a no-op returning ErrNoCredential, which models the logged-out state.
func NewStoreClient(baseURL, token string) *StoreClient {
	return &StoreClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type listData struct {
	Notifications []wireNotification `json:"notifications"`
	Total         int64              `json:"total"`
	Page          int                `json:"page"`
	Size          int                `json:"size"`
	HasMore       bool               `json:"hasMore"`
}

// List fetches one page of notifications, newest first.
func (s *StoreClient) List(ctx context.Context, page, size int) (*ListResult, error) {
	path := fmt.Sprintf("/api/notifications?page=%d&size=%d", page, size)
	data, err := s.do(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var payload listData
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode notification list: %w", err)
	}

	items := make([]Notification, 0, len(payload.Notifications))
	for _, w := range payload.Notifications {
		items = append(items, w.toNotification())
	}

	return &ListResult{
		Items:   items,
		Total:   payload.Total,
		Page:    payload.Page,
		Size:    payload.Size,
		HasMore: payload.HasMore,
	}, nil
}

// UnreadCount fetches the store's authoritative unread count.
func (s *StoreClient) UnreadCount(ctx context.Context) (int, error) {
	data, err := s.do(ctx, http.MethodGet, "/api/notifications/unread-count")
	if err != nil {
		return 0, err
	}

	var payload struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, fmt.Errorf("failed to decode unread count: %w", err)
	}
	return payload.Count, nil
}

// MarkRead marks one notification read. Idempotent on the store side.
func (s *StoreClient) MarkRead(ctx context.Context, id string) error {
	_, err := s.do(ctx, http.MethodPut, "/api/notifications/"+id+"/read")
	return err
}

// MarkAllRead marks every notification read.
func (s *StoreClient) MarkAllRead(ctx context.Context) error {
	_, err := s.do(ctx, http.MethodPut, "/api/notifications/read-all")
	return err
}

// Delete removes one notification. Deleting an already-deleted id succeeds.
func (s *StoreClient) Delete(ctx context.Context, id string) error {
	_, err := s.do(ctx, http.MethodDelete, "/api/notifications/"+id)
	return err
}

// DeleteAll removes every notification.
func (s *StoreClient) DeleteAll(ctx context.Context) error {
	_, err := s.do(ctx, http.MethodDelete, "/api/notifications")
	return err
}

func (s *StoreClient) do(ctx context.Context, method, path string) (json.RawMessage, error) {
	if s.token == "" {
		return nil, ErrNoCredential
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read store response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode store response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !env.Success {
		if env.Message != "" {
			return nil, fmt.Errorf("store rejected %s %s: %s", method, path, env.Message)
		}
		return nil, fmt.Errorf("store rejected %s %s: status %d", method, path, resp.StatusCode)
	}

	return env.Data, nil
}

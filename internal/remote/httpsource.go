package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/porter/internal/core/logging"
	"github.com/colonyops/porter/internal/core/task"
)

const (
	defaultPollInterval = 3 * time.Second
	defaultTimeout      = 10 * time.Second
)

// HTTPConfig configures the HTTP document store client.
type HTTPConfig struct {
	// BaseURL is the root of the task store API, e.g. https://api.example.com.
	BaseURL string
	// Token is sent as a bearer token on every request.
	Token string
	// PollInterval controls how often Subscribe re-queries the result set.
	PollInterval time.Duration
	// Client overrides the default HTTP client.
	Client *http.Client
}

// HTTPSource implements Source against a JSON REST document store.
//
// The store's realtime feed is modeled as a poll loop: Subscribe re-reads
// the owner's full result set and emits it whenever it differs from the
// previous delivery, which preserves the whole-set-per-change contract.
type HTTPSource struct {
	baseURL      string
	token        string
	client       *http.Client
	pollInterval time.Duration
	log          zerolog.Logger
}

var _ Source = (*HTTPSource)(nil)

// NewHTTPSource creates a client for the remote task store.
func NewHTTPSource(cfg HTTPConfig, log zerolog.Logger) *HTTPSource {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	return &HTTPSource{
		baseURL:      cfg.BaseURL,
		token:        cfg.Token,
		client:       client,
		pollInterval: interval,
		log:          logging.Component(log, "remote-http"),
	}
}

// HealthURL returns the endpoint the connectivity monitor probes.
func (s *HTTPSource) HealthURL() string {
	return s.baseURL + "/v1/health"
}

// List returns all tasks for the owner, ordered by created_at descending.
func (s *HTTPSource) List(ctx context.Context, ownerID string) ([]task.Task, error) {
	endpoint := fmt.Sprintf("%s/v1/tasks?owner_id=%s&order=created_at.desc", s.baseURL, url.QueryEscape(ownerID))

	var tasks []task.Task
	if err := s.do(ctx, http.MethodGet, endpoint, nil, &tasks); err != nil {
		return nil, err
	}

	// The server orders the result set, but the contract is ours to keep.
	task.SortByCreatedAt(tasks)
	return tasks, nil
}

// Insert stores a new document keyed by t.ID.
func (s *HTTPSource) Insert(ctx context.Context, t task.Task) error {
	endpoint := fmt.Sprintf("%s/v1/tasks/%s", s.baseURL, url.PathEscape(t.ID))
	return s.do(ctx, http.MethodPut, endpoint, t, nil)
}

// Patch applies the full document to the entry, creating it when absent.
func (s *HTTPSource) Patch(ctx context.Context, id string, t task.Task) error {
	endpoint := fmt.Sprintf("%s/v1/tasks/%s", s.baseURL, url.PathEscape(id))
	return s.do(ctx, http.MethodPut, endpoint, t, nil)
}

// Delete removes the document. A missing document is success.
func (s *HTTPSource) Delete(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("%s/v1/tasks/%s", s.baseURL, url.PathEscape(id))
	err := s.do(ctx, http.MethodDelete, endpoint, nil, nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Subscribe polls the owner's result set and emits it on every change.
func (s *HTTPSource) Subscribe(ctx context.Context, ownerID string) (<-chan []task.Task, error) {
	initial, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	ch := make(chan []task.Task, 1)
	ch <- initial

	go func() {
		defer close(ch)

		last := initial
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				current, err := s.List(ctx, ownerID)
				if err != nil {
					s.log.Debug().Err(err).Msg("subscription poll failed")
					continue
				}
				if reflect.DeepEqual(current, last) {
					continue
				}
				last = current

				select {
				case ch <- current:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

// do executes a request and decodes the response body into out when non-nil.
func (s *HTTPSource) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

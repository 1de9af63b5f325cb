package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/gvarikaa/new-DapDip-sub001/internal/dispatch"
)

// HTTPConfig configures HTTPClient.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
	// ViewRate caps recordView calls per second. Zero disables the cap.
	ViewRate float64
	Retry    dispatch.RetryConfig
}

// HTTPClient implements Client over JSON/HTTP.
//
// Routes:
//
//	GET  /stories?cursor=&author_id=&limit=
//	GET  /reels?cursor=
//	POST /views
//	POST /widgets/{id}/responses
//	POST /items/{id}/reactions
type HTTPClient struct {
	base   *url.URL
	http   *http.Client
	views  *rate.Limiter
	retry  dispatch.RetryConfig
	logger *slog.Logger
}

func NewHTTPClient(cfg HTTPConfig, logger *slog.Logger) (*HTTPClient, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry == (dispatch.RetryConfig{}) {
		cfg.Retry = dispatch.DefaultRetryConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	burst := 1
	if cfg.ViewRate > 0 {
		limit = rate.Limit(cfg.ViewRate)
		burst = int(cfg.ViewRate) + 1
	}

	return &HTTPClient{
		base:   base,
		http:   &http.Client{Timeout: cfg.Timeout},
		views:  rate.NewLimiter(limit, burst),
		retry:  cfg.Retry,
		logger: logger.With("component", "collab"),
	}, nil
}

func (c *HTTPClient) FetchStoryFeed(ctx context.Context, filter StoryFilter) (Page, error) {
	q := url.Values{}
	if filter.Cursor != "" {
		q.Set("cursor", filter.Cursor)
	}
	if filter.AuthorID != "" {
		q.Set("author_id", filter.AuthorID)
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	var page Page
	err := c.do(ctx, "fetchStoryFeed", http.MethodGet, "/stories", q, nil, &page)
	return page, err
}

func (c *HTTPClient) FetchReelFeed(ctx context.Context, cursor string) (Page, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var page Page
	err := c.do(ctx, "fetchReelFeed", http.MethodGet, "/reels", q, nil, &page)
	return page, err
}

func (c *HTTPClient) RecordView(ctx context.Context, v ViewRecord) error {
	if err := c.views.Wait(ctx); err != nil {
		return fmt.Errorf("record view: %w", err)
	}
	return c.do(ctx, "recordView", http.MethodPost, "/views", nil, v, nil)
}

func (c *HTTPClient) SubmitInteractiveResponse(ctx context.Context, widgetID, value string) (SubmitResult, error) {
	var res SubmitResult
	path := "/widgets/" + url.PathEscape(widgetID) + "/responses"
	err := c.do(ctx, "submitInteractiveResponse", http.MethodPost, path, nil, map[string]string{"value": value}, &res)
	return res, err
}

func (c *HTTPClient) ToggleReaction(ctx context.Context, itemID, emoji string) error {
	path := "/items/" + url.PathEscape(itemID) + "/reactions"
	return c.do(ctx, "toggleReaction", http.MethodPost, path, nil, map[string]string{"emoji": emoji}, nil)
}

// do performs one logical request with retries. Transport errors and 5xx
// responses are retried; 4xx responses are permanent.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, q url.Values, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = b
	}

	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = q.Encode()

	return dispatch.Retry(ctx, c.logger, op, func() error {
		req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
		if err != nil {
			return dispatch.Permanent(fmt.Errorf("%s: create request: %w", op, err))
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%s: request failed: %w", op, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s: read response: %w", op, err)
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return dispatch.Permanent(fmt.Errorf("%s %s: %w", op, path, ErrNotFound))
		case resp.StatusCode >= 500:
			return fmt.Errorf("%s: server error %d: %s", op, resp.StatusCode, strings.TrimSpace(string(raw)))
		case resp.StatusCode >= 400:
			return dispatch.Permanent(fmt.Errorf("%s: rejected with status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(raw))))
		}

		if out == nil || len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return dispatch.Permanent(fmt.Errorf("%s: decode response: %w", op, err))
		}
		return nil
	}, c.retry)
}

var _ Client = (*HTTPClient)(nil)

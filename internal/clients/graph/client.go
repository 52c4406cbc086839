package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openviz/widget-service/internal/platform/envutil"
	"github.com/openviz/widget-service/internal/platform/httpx"
	"github.com/openviz/widget-service/internal/platform/logger"
)

// Client maintains widget nodes in the external graph index. DeleteNode is
// idempotent on the service side; deleting an unknown node is not an error.
type Client interface {
	CreateNode(ctx context.Context, datasetID, widgetID string) error
	DeleteNode(ctx context.Context, widgetID string) error
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

func ConfigFromEnv() Config {
	return Config{
		BaseURL:    envutil.String("GRAPH_SERVICE_URL", envutil.String("GATEWAY_URL", "http://localhost:9000")),
		Timeout:    time.Duration(envutil.Int("GRAPH_TIMEOUT_SECONDS", 10)) * time.Second,
		MaxRetries: envutil.Int("GRAPH_MAX_RETRIES", 2),
	}
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("missing GRAPH_SERVICE_URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &client{
		log:        log.With("client", "GraphClient"),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		backoff:    500 * time.Millisecond,
	}, nil
}

type client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

func (c *client) CreateNode(ctx context.Context, datasetID, widgetID string) error {
	endpoint := fmt.Sprintf("%s/v1/graph/dataset/%s/widget/%s",
		c.baseURL, url.PathEscape(datasetID), url.PathEscape(widgetID))
	return c.do(ctx, http.MethodPost, endpoint)
}

func (c *client) DeleteNode(ctx context.Context, widgetID string) error {
	endpoint := fmt.Sprintf("%s/v1/graph/widget/%s", c.baseURL, url.PathEscape(widgetID))
	err := c.do(ctx, http.MethodDelete, endpoint)
	if httpx.IsNotFoundStatus(err) {
		return nil
	}
	return err
}

// do retries transient failures with exponential backoff, honoring a
// Retry-After header when the service sends one.
func (c *client) do(ctx context.Context, method, endpoint string) error {
	backoff := c.backoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, err := c.doOnce(ctx, method, endpoint)
		if err == nil {
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 5*time.Second)
		c.log.Warn("Graph request retrying",
			"endpoint", endpoint,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

func (c *client) doOnce(ctx context.Context, method, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, &httpx.StatusError{Service: "graph", Status: resp.StatusCode}
	}
	return resp, nil
}

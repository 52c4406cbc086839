package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	types "github.com/openviz/widget-service/internal/domain"
	"github.com/openviz/widget-service/internal/platform/envutil"
	"github.com/openviz/widget-service/internal/platform/httpx"
	"github.com/openviz/widget-service/internal/platform/logger"
)

type Client interface {
	// FindByIDs fetches metadata for a batch of widgets. env is an optional
	// environment filter; empty means unfiltered.
	FindByIDs(ctx context.Context, widgetIDs []string, env string) ([]types.Metadata, error)
	DeleteMetadata(ctx context.Context, datasetID, widgetID string) error
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		BaseURL: envutil.String("METADATA_SERVICE_URL", envutil.String("GATEWAY_URL", "http://localhost:9000")),
		Timeout: time.Duration(envutil.Int("METADATA_TIMEOUT_SECONDS", 10)) * time.Second,
	}
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("missing METADATA_SERVICE_URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &client{
		log:        log.With("client", "MetadataClient"),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
}

func (c *client) FindByIDs(ctx context.Context, widgetIDs []string, env string) ([]types.Metadata, error) {
	if len(widgetIDs) == 0 {
		return nil, nil
	}
	payload := map[string]any{"ids": widgetIDs}
	if strings.TrimSpace(env) != "" {
		payload["env"] = env
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/v1/dataset/metadata/find-by-ids"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &httpx.StatusError{Service: "metadata", Status: resp.StatusCode}
	}

	var body struct {
		Data []struct {
			Resource struct {
				ID string `json:"id"`
			} `json:"resource"`
			Fields map[string]any `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode metadata response: %w", err)
	}
	out := make([]types.Metadata, 0, len(body.Data))
	for _, d := range body.Data {
		out = append(out, types.Metadata{ResourceID: d.Resource.ID, Fields: d.Fields})
	}
	return out, nil
}

func (c *client) DeleteMetadata(ctx context.Context, datasetID, widgetID string) error {
	endpoint := fmt.Sprintf("%s/v1/dataset/%s/widget/%s/metadata",
		c.baseURL, url.PathEscape(datasetID), url.PathEscape(widgetID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &httpx.StatusError{Service: "metadata", Status: resp.StatusCode}
	}
	return nil
}

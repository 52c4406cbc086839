package vocabulary

import (
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
	// GetByWidget fetches the vocabulary entries tagged onto one widget.
	// env is an optional environment filter; empty means unfiltered.
	GetByWidget(ctx context.Context, datasetID, widgetID, env string) ([]types.Vocabulary, error)
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		BaseURL: envutil.String("VOCABULARY_SERVICE_URL", envutil.String("GATEWAY_URL", "http://localhost:9000")),
		Timeout: time.Duration(envutil.Int("VOCABULARY_TIMEOUT_SECONDS", 10)) * time.Second,
	}
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("missing VOCABULARY_SERVICE_URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &client{
		log:        log.With("client", "VocabularyClient"),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
}

func (c *client) GetByWidget(ctx context.Context, datasetID, widgetID, env string) ([]types.Vocabulary, error) {
	endpoint := fmt.Sprintf("%s/v1/dataset/%s/widget/%s/vocabulary",
		c.baseURL, url.PathEscape(datasetID), url.PathEscape(widgetID))
	if strings.TrimSpace(env) != "" {
		endpoint += "?env=" + url.QueryEscape(env)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &httpx.StatusError{Service: "vocabulary", Status: resp.StatusCode}
	}

	var body struct {
		Data []struct {
			ID         string `json:"id"`
			Attributes struct {
				Tags        []string `json:"tags"`
				Application string   `json:"application"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode vocabulary response: %w", err)
	}
	out := make([]types.Vocabulary, 0, len(body.Data))
	for _, d := range body.Data {
		out = append(out, types.Vocabulary{
			ResourceID:  d.ID,
			Tags:        d.Attributes.Tags,
			Application: d.Attributes.Application,
		})
	}
	return out, nil
}

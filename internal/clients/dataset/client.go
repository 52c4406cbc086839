package dataset

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

// Client looks up datasets in the dataset service. Widgets must always point
// at an existing dataset, so create/update consult this before writing.
type Client interface {
	Exists(ctx context.Context, datasetID string) error
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		BaseURL: envutil.String("DATASET_SERVICE_URL", envutil.String("GATEWAY_URL", "http://localhost:9000")),
		Timeout: time.Duration(envutil.Int("DATASET_TIMEOUT_SECONDS", 10)) * time.Second,
	}
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("missing DATASET_SERVICE_URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &client{
		log:        log.With("client", "DatasetClient"),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
}

func (c *client) Exists(ctx context.Context, datasetID string) error {
	endpoint := fmt.Sprintf("%s/v1/dataset/%s", c.baseURL, url.PathEscape(datasetID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &httpx.StatusError{Service: "dataset", Status: resp.StatusCode}
	}
	return nil
}

package screenshot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openviz/widget-service/internal/platform/envutil"
	"github.com/openviz/widget-service/internal/platform/httpx"
	"github.com/openviz/widget-service/internal/platform/logger"
)

// Client asks the webshot service to render a widget thumbnail. Callers treat
// every call as best-effort; a failure here never fails the owning mutation.
type Client interface {
	TakeScreenshot(ctx context.Context, widgetID string) (string, error)
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		BaseURL: envutil.String("WEBSHOT_SERVICE_URL", envutil.String("GATEWAY_URL", "http://localhost:9000")),
		Timeout: time.Duration(envutil.Int("WEBSHOT_TIMEOUT_SECONDS", 30)) * time.Second,
	}
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("missing WEBSHOT_SERVICE_URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &client{
		log:        log.With("client", "ScreenshotClient"),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
}

func (c *client) TakeScreenshot(ctx context.Context, widgetID string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/webshot/widget/%s/thumbnail", c.baseURL, url.PathEscape(widgetID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &httpx.StatusError{Service: "webshot", Status: resp.StatusCode}
	}

	var body struct {
		Data struct {
			WidgetThumbnail string `json:"widgetThumbnail"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode webshot response: %w", err)
	}
	thumb := strings.TrimSpace(body.Data.WidgetThumbnail)
	if thumb == "" {
		return "", fmt.Errorf("webshot returned empty thumbnail url")
	}
	return thumb, nil
}

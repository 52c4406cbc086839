package collection

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

// Client reads the collection service. Collection and favourite query flags
// are resolved through here into widget-id allow-lists; failures propagate to
// the caller rather than silently widening the result.
type Client interface {
	FindByIDs(ctx context.Context, collectionIDs []string, userID string) ([]types.Collection, error)
	FindFavouriteIDs(ctx context.Context, userID string) ([]string, error)
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		BaseURL: envutil.String("COLLECTION_SERVICE_URL", envutil.String("GATEWAY_URL", "http://localhost:9000")),
		Timeout: time.Duration(envutil.Int("COLLECTION_TIMEOUT_SECONDS", 10)) * time.Second,
	}
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("missing COLLECTION_SERVICE_URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &client{
		log:        log.With("client", "CollectionClient"),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
}

func (c *client) FindByIDs(ctx context.Context, collectionIDs []string, userID string) ([]types.Collection, error) {
	if len(collectionIDs) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(map[string]any{"ids": collectionIDs, "userId": userID})
	if err != nil {
		return nil, err
	}
	endpoint := c.baseURL + "/v1/collection/find-by-ids"
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
		return nil, &httpx.StatusError{Service: "collection", Status: resp.StatusCode}
	}

	var body struct {
		Data []struct {
			ID         string `json:"id"`
			Attributes struct {
				Resources []types.CollectionResource `json:"resources"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode collection response: %w", err)
	}
	out := make([]types.Collection, 0, len(body.Data))
	for _, d := range body.Data {
		out = append(out, types.Collection{ID: d.ID, Resources: d.Attributes.Resources})
	}
	return out, nil
}

func (c *client) FindFavouriteIDs(ctx context.Context, userID string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/v1/favourite/find-by-user?resource-type=widget&userId=%s",
		c.baseURL, url.QueryEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &httpx.StatusError{Service: "collection", Status: resp.StatusCode}
	}

	var body struct {
		Data []struct {
			Attributes struct {
				ResourceID string `json:"resourceId"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode favourites response: %w", err)
	}
	ids := make([]string, 0, len(body.Data))
	for _, d := range body.Data {
		if d.Attributes.ResourceID != "" {
			ids = append(ids, d.Attributes.ResourceID)
		}
	}
	return ids, nil
}

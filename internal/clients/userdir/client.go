package userdir

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openviz/widget-service/internal/clients/rediscache"
	types "github.com/openviz/widget-service/internal/domain"
	"github.com/openviz/widget-service/internal/platform/envutil"
	"github.com/openviz/widget-service/internal/platform/httpx"
	"github.com/openviz/widget-service/internal/platform/logger"
)

// Client reads the external user directory. Role/name are not denormalized
// onto widgets, so joined sorts and user includes go through here; lookups
// are cached when a redis cache is wired in.
type Client interface {
	FindByIDs(ctx context.Context, ids []string) ([]types.UserRecord, error)
	FindIDsByRole(ctx context.Context, role string) ([]string, error)
}

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		BaseURL:  envutil.String("USER_SERVICE_URL", envutil.String("GATEWAY_URL", "http://localhost:9000")),
		Timeout:  time.Duration(envutil.Int("USER_TIMEOUT_SECONDS", 10)) * time.Second,
		CacheTTL: time.Duration(envutil.Int("USER_CACHE_TTL_SECONDS", 60)) * time.Second,
	}
}

// New builds the directory client. cache may be nil.
func New(log *logger.Logger, cfg Config, cache rediscache.Cache) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("missing USER_SERVICE_URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 60 * time.Second
	}
	return &client{
		log:        log.With("client", "UserDirectoryClient"),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cache,
		cacheTTL:   cfg.CacheTTL,
	}, nil
}

type client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
	cache      rediscache.Cache
	cacheTTL   time.Duration
}

func (c *client) FindByIDs(ctx context.Context, ids []string) ([]types.UserRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	out := make([]types.UserRecord, 0, len(ids))
	missing := ids
	if c.cache != nil {
		missing = missing[:0:0]
		for _, id := range ids {
			var u types.UserRecord
			hit, err := c.cache.GetJSON(ctx, "user:"+id, &u)
			if err != nil {
				c.log.Warn("user cache read failed", "user_id", id, "error", err)
			}
			if hit && err == nil {
				out = append(out, u)
				continue
			}
			missing = append(missing, id)
		}
		if len(missing) == 0 {
			return out, nil
		}
	}

	fetched, err := c.fetchByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		for _, u := range fetched {
			if err := c.cache.SetJSON(ctx, "user:"+u.ID, u, c.cacheTTL); err != nil {
				c.log.Warn("user cache write failed", "user_id", u.ID, "error", err)
			}
		}
	}
	return append(out, fetched...), nil
}

func (c *client) fetchByIDs(ctx context.Context, ids []string) ([]types.UserRecord, error) {
	raw, err := json.Marshal(map[string]any{"ids": ids})
	if err != nil {
		return nil, err
	}
	endpoint := c.baseURL + "/auth/user/find-by-ids"
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
		return nil, &httpx.StatusError{Service: "user directory", Status: resp.StatusCode}
	}

	var body struct {
		Data []types.UserRecord `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode user directory response: %w", err)
	}
	return body.Data, nil
}

func (c *client) FindIDsByRole(ctx context.Context, role string) ([]string, error) {
	if c.cache != nil {
		var cached []string
		hit, err := c.cache.GetJSON(ctx, "role-ids:"+role, &cached)
		if err != nil {
			c.log.Warn("role cache read failed", "role", role, "error", err)
		}
		if hit && err == nil {
			return cached, nil
		}
	}

	endpoint := c.baseURL + "/auth/user/ids/" + url.PathEscape(role)
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
		return nil, &httpx.StatusError{Service: "user directory", Status: resp.StatusCode}
	}

	var body struct {
		Data []string `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode user directory response: %w", err)
	}
	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, "role-ids:"+role, body.Data, c.cacheTTL); err != nil {
			c.log.Warn("role cache write failed", "role", role, "error", err)
		}
	}
	return body.Data, nil
}

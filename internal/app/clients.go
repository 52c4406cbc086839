package app

import (
	"fmt"

	"github.com/openviz/widget-service/internal/clients/collection"
	"github.com/openviz/widget-service/internal/clients/dataset"
	"github.com/openviz/widget-service/internal/clients/graph"
	"github.com/openviz/widget-service/internal/clients/metadata"
	"github.com/openviz/widget-service/internal/clients/rediscache"
	"github.com/openviz/widget-service/internal/clients/screenshot"
	"github.com/openviz/widget-service/internal/clients/userdir"
	"github.com/openviz/widget-service/internal/clients/vocabulary"
	"github.com/openviz/widget-service/internal/platform/logger"
)

type Clients struct {
	Cache      rediscache.Cache
	Dataset    dataset.Client
	Graph      graph.Client
	Screenshot screenshot.Client
	Metadata   metadata.Client
	Vocabulary vocabulary.Client
	Users      userdir.Client
	Collection collection.Client
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	// Redis is optional: without it the user directory just skips caching.
	cache, err := rediscache.NewFromEnv(log)
	if err != nil {
		log.Warn("redis unavailable, user directory caching disabled", "error", err)
		cache = nil
	}
	c.Cache = cache

	if c.Dataset, err = dataset.New(log, dataset.ConfigFromEnv()); err != nil {
		return c, fmt.Errorf("dataset client: %w", err)
	}
	if c.Graph, err = graph.New(log, graph.ConfigFromEnv()); err != nil {
		return c, fmt.Errorf("graph client: %w", err)
	}
	if c.Screenshot, err = screenshot.New(log, screenshot.ConfigFromEnv()); err != nil {
		return c, fmt.Errorf("screenshot client: %w", err)
	}
	if c.Metadata, err = metadata.New(log, metadata.ConfigFromEnv()); err != nil {
		return c, fmt.Errorf("metadata client: %w", err)
	}
	if c.Vocabulary, err = vocabulary.New(log, vocabulary.ConfigFromEnv()); err != nil {
		return c, fmt.Errorf("vocabulary client: %w", err)
	}
	if c.Users, err = userdir.New(log, userdir.ConfigFromEnv(), cache); err != nil {
		return c, fmt.Errorf("user directory client: %w", err)
	}
	if c.Collection, err = collection.New(log, collection.ConfigFromEnv()); err != nil {
		return c, fmt.Errorf("collection client: %w", err)
	}
	return c, nil
}

func (c Clients) Close() {
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
}

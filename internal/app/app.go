// Package app wires a resolved project into ready-to-use pipeline and
// query components. The CLI and the REST server both go through it, so
// project resolution and index/cache scoping behave identically.
package app

import (
	"fmt"

	"codectx/config"
	"codectx/internal/adapter/embedcache"
	"codectx/internal/adapter/embedding"
	"codectx/internal/adapter/extractor"
	"codectx/internal/adapter/fs"
	"codectx/internal/adapter/index"
	"codectx/internal/domain"
	"codectx/internal/port"
	"codectx/internal/registry"
	"codectx/internal/usecase"
)

// App holds process-wide state: the loaded configuration and the project
// registry.
type App struct {
	Cfg      *config.Config
	Registry *registry.Registry
}

// New opens the registry and validates the configuration.
func New(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	reg, err := registry.Open(cfg.Registry.Dir)
	if err != nil {
		return nil, err
	}
	return &App{Cfg: cfg, Registry: reg}, nil
}

// configFor returns the project's own config when it has one, otherwise
// the global config.
func (a *App) configFor(p domain.Project) (*config.Config, error) {
	if p.ConfigPath == "" {
		return a.Cfg, nil
	}
	cfg, err := config.Load(p.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load project config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Session is an opened project: its config, embedder, and vector index,
// scoped by the project's index name.
type Session struct {
	Project  domain.Project
	Cfg      *config.Config
	Embedder port.EmbedderBackend
	Index    *index.BoltIndex

	cache *embedcache.BoltCache
}

// Close releases the session's store handles.
func (s *Session) Close() error {
	var firstErr error
	if s.cache != nil {
		firstErr = s.cache.Close()
	}
	if err := s.Index.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Open resolves projectName (empty means the current project) and opens
// its index and embedding cache.
func (a *App) Open(projectName string) (*Session, error) {
	p, err := a.Registry.Resolve(projectName)
	if err != nil {
		return nil, err
	}

	cfg, err := a.configFor(p)
	if err != nil {
		return nil, err
	}

	backend, err := embedding.NewBackend(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	var cache *embedcache.BoltCache
	var cachePort port.EmbeddingCache
	if cfg.Embedder.UseCache {
		cache, err = embedcache.Open(cfg.CachePath(p.IndexName))
		if err != nil {
			return nil, err
		}
		cachePort = cache
	}

	retry := embedding.DefaultRetryConfig()
	if cfg.Embedder.MaxRetries > 0 {
		retry.MaxRetries = cfg.Embedder.MaxRetries
	}
	embedder := embedding.NewCachingEmbedder(backend, cachePort, cfg.Embedder.BatchSize, cfg.Embedder.MaxWorkers, retry)

	idx, err := index.Open(cfg.IndexPath(p.IndexName), cfg.VectorIndex.Metric, backend.Dimension())
	if err != nil {
		if cache != nil {
			cache.Close()
		}
		return nil, err
	}

	return &Session{
		Project:  p,
		Cfg:      cfg,
		Embedder: embedder,
		Index:    idx,
		cache:    cache,
	}, nil
}

// Indexer builds the indexing pipeline for an open session.
func (a *App) Indexer(s *Session) (*usecase.IndexUseCase, error) {
	extractors, err := extractor.NewDefaultRegistry(s.Cfg.Extractors.MaxFileSize)
	if err != nil {
		return nil, err
	}

	walker := fs.NewWalker(s.Cfg.Indexing.ExcludeDirs, s.Cfg.Indexing.ExcludeFiles)

	return usecase.NewIndexUseCase(
		walker,
		extractors,
		s.Embedder,
		s.Index,
		s.Cfg.LockPath(s.Project.IndexName),
		s.Cfg.Indexing.MaxWorkers,
	), nil
}

// Querier builds the query engine for an open session.
func (a *App) Querier(s *Session) *usecase.QueryUseCase {
	return usecase.NewQueryUseCase(
		s.Embedder,
		s.Index,
		s.Cfg.Retriever.FormatTemplate,
		s.Cfg.Retriever.Separator,
	)
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/taisirhassan/cipherstream/internal/config"
	"github.com/taisirhassan/cipherstream/internal/domain"
	"github.com/taisirhassan/cipherstream/internal/eventbus"
	"github.com/taisirhassan/cipherstream/internal/logging"
	"github.com/taisirhassan/cipherstream/internal/network"
	"github.com/taisirhassan/cipherstream/internal/repository"
)

// node bundles everything one CLI invocation needs to drive an Engine,
// mirroring the teacher's main.go pattern of wiring services together in
// one place rather than through a DI container.
type node struct {
	cfg     *config.Config
	log     zerolog.Logger
	repos   *repository.Set
	bus     *eventbus.Bus
	metrics *network.Metrics
	engine  *network.Engine
}

func newNode(ctx context.Context) (*node, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: logging.Format(cfg.LogFormat),
		Roll:   logging.Roll(cfg.LogRoll),
	})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	repos, err := repository.NewSet(repository.Backend(cfg.RepoBackend), cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open repositories: %w", err)
	}

	bus := eventbus.New(256)
	bus.Subscribe(func(ev domain.Event) error {
		log.Info().Str("type", string(ev.Type)).Str("transfer", ev.TransferID).Str("peer", ev.PeerID).Msg("event")
		return nil
	})

	metrics := network.NewMetrics()

	transport, err := network.NewLibP2PTransport(ctx, 30*time.Second)
	if err != nil {
		repos.Close()
		return nil, fmt.Errorf("build transport: %w", err)
	}

	engine := network.NewEngine(transport, repos, bus, metrics, cfg, network.DefaultOptions(), log)

	return &node{cfg: cfg, log: log, repos: repos, bus: bus, metrics: metrics, engine: engine}, nil
}

func (n *node) close() {
	n.repos.Close()
}

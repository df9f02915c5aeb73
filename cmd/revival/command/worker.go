package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pixil98/go-revival/internal/admin"
	"github.com/pixil98/go-revival/internal/corpse"
	"github.com/pixil98/go-revival/internal/driver"
	"github.com/pixil98/go-revival/internal/gateway"
	"github.com/pixil98/go-revival/internal/lifecycle"
	"github.com/pixil98/go-revival/internal/listener"
	"github.com/pixil98/go-revival/internal/logging"
	"github.com/pixil98/go-revival/internal/messaging"
	"github.com/pixil98/go-revival/internal/session"
	"github.com/pixil98/go-revival/internal/visibility"
	"github.com/pixil98/go-service"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	closeLogs, err := logging.Setup(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}

	// Corpse state
	store, err := cfg.Storage.BuildCorpseStore()
	if err != nil {
		return nil, err
	}
	worlds, err := cfg.Worlds.BuildWorlds()
	if err != nil {
		return nil, err
	}
	registry := corpse.NewRegistry(store, worlds)
	if err := registry.Load(context.Background()); err != nil {
		return nil, fmt.Errorf("loading corpses: %w", err)
	}

	directory := session.NewDirectory()
	resolver := cfg.Identity.BuildResolver(directory)

	// Broker and outbound frames
	codec, err := cfg.Nats.codec()
	if err != nil {
		return nil, err
	}
	natsServer, err := cfg.Nats.buildNatsServer()
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}
	publisher := messaging.NewPublisher(natsServer, codec)

	// Simulation
	sim := driver.NewDriver(nil, driver.WithTickLength(cfg.tickInterval()))
	vis := visibility.NewSync(registry, directory, resolver, publisher, sim)
	registry.Observe(vis)

	settings, err := lifecycle.LoadSettings(cfg.Revival.SettingsPath)
	if err != nil {
		return nil, err
	}
	coordinator, err := lifecycle.NewCoordinator(registry, vis, directory, publisher, sim, settings,
		lifecycle.WithSettingsPath(cfg.Revival.SettingsPath),
		lifecycle.WithWorlds(worlds),
	)
	if err != nil {
		return nil, fmt.Errorf("creating coordinator: %w", err)
	}

	sim.AddTicker(coordinator)
	sim.AddTicker(resolver)
	sim.OnShutdown(coordinator.Shutdown)
	sim.OnShutdown(func(ctx context.Context) {
		if err := store.Close(); err != nil {
			slog.ErrorContext(ctx, "closing corpse store", "error", err)
		}
		_ = closeLogs()
	})

	// Inbound surfaces
	console := admin.NewConsole(sim, coordinator, directory)
	dispatcher := messaging.NewDispatcher(natsServer, sim, coordinator, console)

	cm := listener.NewConnectionManager(console, cfg.AdminPasswordHash)
	listeners := make(service.WorkerList, len(cfg.Listeners))
	for i, l := range cfg.Listeners {
		w, err := l.BuildListener(cm)
		if err != nil {
			return nil, fmt.Errorf("creating listener %d: %w", i, err)
		}
		listeners[fmt.Sprintf("listener-%d", i)] = w
	}

	workers := service.WorkerList{
		"driver":     sim,
		"nats":       natsServer,
		"dispatcher": dispatcher,
		"listeners":  &listeners,
	}
	if cfg.Gateway.Addr != "" {
		workers["gateway"] = gateway.NewGateway(cfg.Gateway.Addr, cfg.Gateway.Token, natsServer, dispatcher, codec)
	}

	slog.Info("revival configured", "corpses", len(registry.All()), "storage", cfg.Storage.Driver, "codec", codec.Name())
	return workers, nil
}

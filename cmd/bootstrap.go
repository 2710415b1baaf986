package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"streamvault/internal/admin"
	"streamvault/internal/configuration"
	"streamvault/internal/metrics"
	"streamvault/internal/protocol"
	"streamvault/internal/storage"
	"streamvault/internal/subscription"
	"streamvault/internal/transport"
)

type Services struct {
	Storage   *storage.Service
	Registry  *subscription.Registry
	Protocol  *protocol.Handler
	Transport *transport.Server
	Admin     *admin.Server
	Metrics   *metrics.Server
}

func NewServices(cfg *configuration.Properties) (*Services, error) {
	storageSvc, err := storage.NewService(&cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	registry := subscription.NewRegistry()
	handler := protocol.NewHandler(storageSvc, registry)

	services := &Services{
		Storage:   storageSvc,
		Registry:  registry,
		Protocol:  handler,
		Transport: transport.NewServer(&cfg.Transport, handler),
	}
	if cfg.Admin.Enabled {
		services.Admin = admin.NewServer(&cfg.Admin, storageSvc)
	}
	if cfg.Metrics.Enabled {
		services.Metrics = metrics.NewServer(cfg.Metrics.Address, storageSvc.Healthy)
	}
	return services, nil
}

// Start brings up the listeners after the store is ready. On failure
// everything already started is stopped again.
func (s *Services) Start(ctx context.Context) error {
	s.Storage.Start()

	if s.Metrics != nil {
		if err := s.Metrics.Start(); err != nil {
			return errors.Join(err, s.Shutdown(ctx))
		}
	}
	if s.Admin != nil {
		if err := s.Admin.Start(); err != nil {
			return errors.Join(err, s.Shutdown(ctx))
		}
	}
	if err := s.Transport.Start(); err != nil {
		return errors.Join(err, s.Shutdown(ctx))
	}
	return nil
}

// Shutdown stops accepting clients and admin calls first, then drains and
// persists the store, then takes down the metrics listener.
func (s *Services) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.Transport.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop transport: %w", err))
	}
	s.Protocol.Close()

	if s.Admin != nil {
		s.Admin.Stop(ctx)
	}

	if err := s.Storage.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown storage: %w", err))
	}
	if s.Metrics != nil {
		s.Metrics.Stop()
	}

	if err := errors.Join(errs...); err != nil {
		slog.Error("shutdown finished with errors", "error", err)
		return err
	}
	return nil
}

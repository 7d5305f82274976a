package main

import (
	"context"
	"errors"

	"conduit/internal/config"
	"conduit/internal/domains/marketing"
	"conduit/internal/hooks"
	"conduit/internal/llm"
	"conduit/internal/logging"
	"conduit/internal/memory"
	"conduit/internal/observability"
	"conduit/internal/workflow"
)

// app is the wired process: providers, history store and workflow runner.
type app struct {
	runner  *marketing.Runner
	store   memory.Store
	metrics *observability.MetricsProvider
	tracing *observability.TracerProvider
}

// newApp wires every collaborator from cfg. observers are added to each run.
func newApp(ctx context.Context, cfg config.Config, observers ...workflow.Hook) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &app{}

	metricsProvider, err := observability.NewMetricsProvider(cfg.Observability.Metrics)
	if err != nil {
		return nil, err
	}
	a.metrics = metricsProvider
	metrics, err := hooks.NewMetrics(metricsProvider.Meter())
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	tracerProvider, err := observability.NewTracerProvider(cfg.Observability.Tracing)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.tracing = tracerProvider

	if cfg.Memory.Enabled {
		store, err := memory.Open(ctx, cfg.Memory)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.store = store
	}

	opts := marketing.Options{}
	if cfg.Marketing.UseLLM {
		client, err := llm.NewFromConfig(cfg.LLM)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		opts.LLM = client
	}
	agents, err := marketing.NewAgents(opts)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	runner, err := marketing.NewRunner(marketing.Deps{
		Agents:    agents,
		Guardrail: cfg.Guardrail,
		Store:     a.store,
		Metrics:   metrics,
		Tracer:    tracerProvider.Tracer(),
		Logger:    logging.NewComponentLogger("workflow"),
		Observers: observers,
	})
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.runner = runner
	return a, nil
}

// Close flushes telemetry and closes the store.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.tracing != nil {
		errs = append(errs, a.tracing.Shutdown(ctx))
	}
	if a.metrics != nil {
		errs = append(errs, a.metrics.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// openStore opens the history store without wiring a runner.
func openStore(ctx context.Context, cfg config.Config) (memory.Store, error) {
	if !cfg.Memory.Enabled {
		return nil, errors.New("run history is disabled (memory.enabled=false)")
	}
	return memory.Open(ctx, cfg.Memory)
}

package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/config"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/gke"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/logging"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/pipeline"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/telemetry"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/transform"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/transport"
)

func Bootstrap(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.FilterConfig == "" && cfg.PipelineYml == "" {
		return nil, errors.New("engine: nothing to run (need a filter config or a pipeline)")
	}
	e := &Engine{}

	// 1. transform service
	if cfg.FilterConfig != "" {
		fc, err := config.LoadFilterConfig(cfg.FilterConfig)
		if err != nil {
			return nil, fmt.Errorf("filter config: %w", err)
		}
		f, err := gke.New(fc)
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		if e.transport, err = transport.StartServer(cfg.GRPCAddr, transform.NewServer(f)); err != nil {
			return nil, fmt.Errorf("transport: %w", err)
		}
		logging.L().Info("transform service listening", "addr", e.transport.Addr().String(), "mode", string(f.Mode()))
	}

	// 2. pipeline runner
	if cfg.PipelineYml != "" {
		runner, err := pipeline.Compile(cfg.PipelineYml)
		if err != nil {
			e.stopTransport()
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		if err := runner.Start(ctx); err != nil {
			_ = runner.Close()
			e.stopTransport()
			return nil, err
		}
		e.runner = runner
	}

	// 3. metrics
	telemetry.Expose(cfg.MetricsAddr)

	return e, nil
}

func (e *Engine) stopTransport() {
	if e.transport != nil {
		e.transport.Stop()
	}
}

package engine

import (
	"context"
	"net"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/logging"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/pipeline"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/transport"
)

type Config struct {
	// GRPCAddr is where the gke transform service listens. Only used with
	// FilterConfig.
	GRPCAddr    string
	MetricsAddr string // empty disables /metrics
	PipelineYml string
	// FilterConfig enables the transform service backed by a filter built
	// from this file (plus GKEFILTER__* and NODE_NAME).
	FilterConfig string
}

type Engine struct {
	transport *transport.Server
	runner    *pipeline.Runner
}

// Addr is the transform service address, nil when it is not running.
func (e *Engine) Addr() net.Addr {
	if e.transport == nil {
		return nil
	}
	return e.transport.Addr()
}

// Run serves until ctx is cancelled, the pipeline source stops or the
// transport fails, then shuts everything down.
func (e *Engine) Run(ctx context.Context) error {
	serveErr := make(chan error, 1)
	if e.transport != nil {
		go func() { serveErr <- e.transport.Serve() }()
	}
	var pipelineDone <-chan struct{}
	if e.runner != nil {
		pipelineDone = e.runner.Done()
	}

	var err error
	select {
	case <-ctx.Done():
		logging.L().Info("engine: shutting down", "reason", ctx.Err())
	case <-pipelineDone:
		err = e.runner.Wait()
	case err = <-serveErr:
	}

	if e.transport != nil {
		e.transport.Stop()
	}
	if e.runner != nil {
		if cerr := e.runner.Close(); cerr != nil {
			logging.L().Warn("engine: closing pipeline", "err", cerr)
		}
	}
	return err
}

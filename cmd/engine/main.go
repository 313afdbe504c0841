package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/engine"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/logging"
)

func main() {
	var cfg engine.Config
	pflag.StringVar(&cfg.PipelineYml, "pipeline", "pipeline.yml", "pipeline definition (empty to only serve the transform service)")
	pflag.StringVar(&cfg.FilterConfig, "filter-config", "", "filter config; enables the gke transform service")
	pflag.StringVar(&cfg.GRPCAddr, "grpc-addr", ":7070", "transform service listen address")
	pflag.StringVar(&cfg.MetricsAddr, "metrics-addr", ":9100", "prometheus listen address (empty disables)")
	help := pflag.BoolP("help", "h", false, "print usage")
	pflag.Parse()
	if *help {
		pflag.Usage()
		os.Exit(0)
	}
	logging.InitFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := engine.Bootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	if err := e.Run(ctx); err != nil {
		log.Fatalf("engine: %v", err)
	}
}

// Command gkefilter runs the gke record filter on its own, either as a gRPC
// transform plugin or as a stdin -> stdout filter.
//
//	gkefilter --config filter.yml --listen :50051
//	NODE_NAME=n1 gkefilter --mode 3 --stdio < events.ndjson
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/config"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/gke"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/logging"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/pipeline"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/spec"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/telemetry"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/transform"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/transport"
)

func main() {
	cfgPath := pflag.String("config", "", "filter config file")
	mode := pflag.String("mode", "", "override the configured mode (1, 2 or 3)")
	listen := pflag.String("listen", ":50051", "address to listen on")
	metricsAddr := pflag.String("metrics-addr", "", "prometheus listen address (empty disables)")
	stdio := pflag.Bool("stdio", false, "filter envelopes from stdin to stdout instead of serving gRPC")
	pflag.Parse()
	logging.InitFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	telemetry.Expose(*metricsAddr)

	if *stdio {
		if err := runStdio(ctx, *cfgPath, *mode); err != nil {
			log.Fatalf("gkefilter: %v", err)
		}
		return
	}

	f, err := newFilter(*cfgPath, *mode)
	if err != nil {
		log.Fatalf("gkefilter: %v", err)
	}
	srv, err := transport.StartServer(*listen, transform.NewServer(f))
	if err != nil {
		log.Fatalf("gkefilter: listen: %v", err)
	}
	go func() {
		<-ctx.Done()
		srv.Stop()
	}()
	logging.L().Info("gke transform plugin listening", "addr", srv.Addr().String(), "mode", string(f.Mode()))
	if err := srv.Serve(); err != nil {
		logging.L().Error("gkefilter: serve failed", "err", err)
		os.Exit(1)
	}
}

func newFilter(path, mode string) (*gke.Filter, error) {
	fc, err := config.LoadFilterConfigWithMode(path, gke.Mode(mode))
	if err != nil {
		return nil, err
	}
	return gke.New(fc)
}

func runStdio(ctx context.Context, path, mode string) error {
	var file spec.File
	file.SchemaVersion = config.SupportedSchema
	file.Source.Kind = "stdin"
	file.Transformers = []spec.TransformerSpec{{Name: "gke", Type: "inproc", Config: path, Mode: mode}}
	file.Sinks = []string{"stdout"}

	r := pipeline.NewRunner()
	if err := pipeline.Build(file, r); err != nil {
		_ = r.Close()
		return err
	}
	if err := r.Start(ctx); err != nil {
		return err
	}
	err := r.Wait()
	if cerr := r.Close(); err == nil {
		err = cerr
	}
	return err
}

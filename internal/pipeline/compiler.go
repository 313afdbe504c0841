package pipeline

import (
	"fmt"
	"time"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/config"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/gke"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/spec"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/transform"
	"github.com/max0ne/fluent-plugin-google-cloud/sink"
	"github.com/max0ne/fluent-plugin-google-cloud/sink/file"
	"github.com/max0ne/fluent-plugin-google-cloud/sink/kafka"
	"github.com/max0ne/fluent-plugin-google-cloud/sink/stdout"
	"github.com/max0ne/fluent-plugin-google-cloud/source"
	_ "github.com/max0ne/fluent-plugin-google-cloud/source/kafka"
	"github.com/max0ne/fluent-plugin-google-cloud/source/stdin"
)

func Compile(path string) (*Runner, error) {
	cfg, err := config.LoadPipelineSpec(path)
	if err != nil {
		return nil, err
	}
	r := NewRunner()
	if err := Build(cfg, r); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

// Build wires source, transform stages and sinks described by cfg into r.
func Build(cfg spec.File, r *Runner) error {
	src, err := buildSource(cfg)
	if err != nil {
		return err
	}
	r.SetSource(src)
	if aw, ok := src.(source.AckAware); ok {
		r.SubscribeAck(aw.OnAck)
	}

	for _, t := range cfg.Transformers {
		cli, err := buildTransformer(t)
		if err != nil {
			return fmt.Errorf("transform %s: %w", t.Name, err)
		}
		to := time.Duration(t.TimeoutMS) * time.Millisecond
		backoff := time.Duration(t.RetryPolicy.BackoffMS) * time.Millisecond
		r.AddTransformer(t.Name, cli, to, t.RetryPolicy.Attempts, backoff)
	}

	for _, name := range cfg.Sinks {
		sDrv, err := sink.NewAdapter(name)
		if err != nil {
			return err
		}
		if err := sDrv.Configure(sinkConfig(cfg, name)); err != nil {
			return err
		}
		r.AddSink(sDrv)
	}
	return nil
}

func buildSource(cfg spec.File) (source.Adapter, error) {
	var (
		name string
		sc   any
	)
	switch cfg.Source.Kind {
	case "kafka":
		kc, err := config.LoadKafkaConfig(cfg.Source.Config)
		if err != nil {
			return nil, err
		}
		driver := cfg.Source.Driver
		if driver == "" {
			driver = "sarama"
		}
		name, sc = "kafka/"+driver, kc
	case "stdin":
		name, sc = "stdin", stdin.Config{SkipInvalid: true}
	default:
		return nil, fmt.Errorf("unsupported source %q", cfg.Source.Kind)
	}
	src, err := source.NewAdapter(name)
	if err != nil {
		return nil, err
	}
	if err := src.Configure(sc); err != nil {
		return nil, err
	}
	return src, nil
}

func buildTransformer(t spec.TransformerSpec) (transform.Client, error) {
	switch t.Type {
	case "inproc", "":
		fc, err := filterConfig(t)
		if err != nil {
			return nil, err
		}
		f, err := gke.New(fc)
		if err != nil {
			return nil, err
		}
		return transform.NewInProcessClient(f), nil
	case "grpc":
		cli, err := transform.NewGRPCClient(t.Address)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", t.Address, err)
		}
		return cli, nil
	default:
		return nil, fmt.Errorf("unsupported transformer type %q", t.Type)
	}
}

// filterConfig loads the filter config file (if any) and applies the inline
// mode on top of it.
func filterConfig(t spec.TransformerSpec) (gke.Config, error) {
	return config.LoadFilterConfigWithMode(t.Config, gke.Mode(t.Mode))
}

func sinkConfig(cfg spec.File, name string) any {
	switch name {
	case "stdout":
		sc := cfg.SinkConfigs.Stdout
		return stdout.Config{
			DelayMS:      cfg.Debug.PerEventDelayMS,
			PrintCounter: sc.PrintCounter,
			BatchSize:    sc.AckBatchSize,
			FlushMS:      sc.AckFlushMS,
		}
	case "kafka":
		kc := cfg.SinkConfigs.Kafka
		return kafka.Config{Brokers: kc.Brokers, Topic: kc.Topic, Acks: kc.RequiredAcks, Version: kc.Version}
	case "file":
		fc := cfg.SinkConfigs.File
		return file.Config{Path: fc.Path, Compress: fc.Compress, BatchSize: fc.BatchSize}
	}
	return nil
}

// Package gke rewrites log records collected on a GKE node into the shape the
// Cloud Logging output expects. A Filter runs in one of three modes:
//
//	"1"  container logs: insert ID, pod labels, k8s_container resource ID,
//	     log/stream folded into message/severity
//	"2"  glog-style system logs: oversized message trimming and
//	     source location extraction
//	"3"  node logs: k8s_node resource ID
//
// A Filter never blocks and performs no I/O. It is safe for concurrent use.
package gke

import (
	"errors"
	"fmt"
	"time"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/logging"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/telemetry"
)

type Mode string

const (
	ModeContainer Mode = "1"
	ModeSystem    Mode = "2"
	ModeNode      Mode = "3"
)

// Field names consumed by the Cloud Logging output. These are part of the
// wire contract and must not change.
const (
	LabelsKey          = "logging.googleapis.com/labels"
	LocalResourceIDKey = "logging.googleapis.com/local_resource_id"
	SourceLocationKey  = "logging.googleapis.com/sourceLocation"

	DefaultInsertIDKey = "logging.googleapis.com/insertId"
)

var ErrInvalidMode = errors.New("gke: invalid mode")

func (m Mode) Valid() bool {
	switch m {
	case ModeContainer, ModeSystem, ModeNode:
		return true
	}
	return false
}

type Config struct {
	Mode        Mode   `koanf:"mode" yaml:"mode"`
	InsertIDKey string `koanf:"insert_id_key" yaml:"insert_id_key"`
	// NodeName is the value of NODE_NAME captured at startup; only mode 3
	// reads it.
	NodeName string `koanf:"node_name" yaml:"node_name"`
}

func (c Config) Validate() error {
	if c.Mode == "" {
		return fmt.Errorf("%w: must set mode", ErrInvalidMode)
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("%w: %q (want one of %q, %q, %q)", ErrInvalidMode, c.Mode, ModeContainer, ModeSystem, ModeNode)
	}
	return nil
}

type Option func(*Filter)

// WithInsertIDGenerator replaces the default insert ID generator.
func WithInsertIDGenerator(g InsertIDGenerator) Option {
	return func(f *Filter) { f.ids = g }
}

type Filter struct {
	cfg Config
	ids InsertIDGenerator
}

// New validates cfg and returns a Filter for its mode. An unset or unknown
// mode is rejected here, before any record is seen.
func New(cfg Config, opts ...Option) (*Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.InsertIDKey == "" {
		cfg.InsertIDKey = DefaultInsertIDKey
	}
	f := &Filter{cfg: cfg}
	for _, o := range opts {
		o(f)
	}
	if f.ids == nil && cfg.Mode == ModeContainer {
		g, err := NewInsertIDGenerator()
		if err != nil {
			return nil, fmt.Errorf("gke: insert id generator: %w", err)
		}
		f.ids = g
	}
	if cfg.Mode == ModeNode && cfg.NodeName == "" {
		logging.L().Warn("gke filter: NODE_NAME is empty; node resource IDs will be incomplete")
	}
	return f, nil
}

func (f *Filter) Mode() Mode { return f.cfg.Mode }

func (f *Filter) Config() Config { return f.cfg }

// Transform rewrites rec for the configured mode and returns it. Well-formed
// records are mutated in place. Anything that is not a map[string]any is
// returned as is.
func (f *Filter) Transform(tag string, _ time.Time, rec any) any {
	telemetry.RecordsTotal.WithLabelValues(string(f.cfg.Mode)).Inc()

	r, ok := rec.(map[string]any)
	if !ok {
		telemetry.MalformedRecordsTotal.WithLabelValues(string(f.cfg.Mode)).Inc()
		logging.L().Debug("gke filter: record is not a map, passing through", "mode", f.cfg.Mode, "tag", tag, "type", fmt.Sprintf("%T", rec))
		return rec
	}

	switch f.cfg.Mode {
	case ModeContainer:
		return f.container(tag, r)
	case ModeSystem:
		return f.system(r)
	default:
		return f.node(r)
	}
}

// Transform is a one-shot helper that builds a Filter for cfg and applies it.
// It is meant for tools and tests; long-lived callers should hold a Filter so
// that insert IDs keep increasing.
func Transform(cfg Config, tag string, ts time.Time, rec any, opts ...Option) (any, error) {
	f, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return f.Transform(tag, ts, rec), nil
}

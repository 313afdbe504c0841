package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/gke"
)

const (
	filterEnvPrefix = "GKEFILTER__"
	nodeNameEnv     = "NODE_NAME"
)

// LoadFilterConfig merges, in increasing priority, the YAML file at path (if
// present), GKEFILTER__* environment variables (delimiter "__", e.g.
// GKEFILTER__INSERT_ID_KEY) and NODE_NAME. The result is validated, so a
// missing or unknown mode is reported here.
func LoadFilterConfig(path string) (gke.Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return gke.Config{}, err
		}
	}
	sv := k.String("schema_version")
	if sv != "" && sv != SupportedSchema {
		return gke.Config{}, fmt.Errorf("filter schema_version %q not supported (want %s)", sv, SupportedSchema)
	}

	if err := k.Load(env.Provider(filterEnvPrefix, "__", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, filterEnvPrefix))
	}), nil); err != nil {
		return gke.Config{}, err
	}
	// An empty NODE_NAME leaves node_name from the file alone.
	if err := k.Load(env.ProviderWithValue(nodeNameEnv, "__", func(key, value string) (string, any) {
		if key != nodeNameEnv || value == "" {
			return "", nil
		}
		return "node_name", value
	}), nil); err != nil {
		return gke.Config{}, err
	}

	var cfg gke.Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	if cfg.InsertIDKey == "" {
		cfg.InsertIDKey = gke.DefaultInsertIDKey
	}
	return cfg, cfg.Validate()
}

// LoadFilterConfigWithMode is LoadFilterConfig where a non-empty mode replaces
// the loaded one. Only a mode error from the loaded config is forgiven; any
// other load error is returned as is.
func LoadFilterConfigWithMode(path string, mode gke.Mode) (gke.Config, error) {
	cfg, err := LoadFilterConfig(path)
	if mode == "" {
		return cfg, err
	}
	if err != nil && !errors.Is(err, gke.ErrInvalidMode) {
		return cfg, err
	}
	cfg.Mode = mode
	return cfg, cfg.Validate()
}

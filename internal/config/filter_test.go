package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/gke"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadFilterConfig_FromFile(t *testing.T) {
	t.Setenv("NODE_NAME", "")
	p := writeFile(t, "filter.yml", "schema_version: v1\nmode: \"2\"\ninsert_id_key: insertId\n")

	cfg, err := LoadFilterConfig(p)
	if err != nil {
		t.Fatalf("LoadFilterConfig: %v", err)
	}
	if cfg.Mode != gke.ModeSystem || cfg.InsertIDKey != "insertId" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadFilterConfig_UnquotedModeAndDefaults(t *testing.T) {
	p := writeFile(t, "filter.yml", "mode: 1\n")
	cfg, err := LoadFilterConfig(p)
	if err != nil {
		t.Fatalf("LoadFilterConfig: %v", err)
	}
	if cfg.Mode != gke.ModeContainer {
		t.Fatalf("mode = %q, want %q", cfg.Mode, gke.ModeContainer)
	}
	if cfg.InsertIDKey != gke.DefaultInsertIDKey {
		t.Fatalf("insert id key = %q", cfg.InsertIDKey)
	}
}

func TestLoadFilterConfig_EnvOverridesAndNodeName(t *testing.T) {
	p := writeFile(t, "filter.yml", "mode: \"1\"\nnode_name: from-file\n")
	t.Setenv("GKEFILTER__MODE", "3")
	t.Setenv("NODE_NAME", "gke-node-7")

	cfg, err := LoadFilterConfig(p)
	if err != nil {
		t.Fatalf("LoadFilterConfig: %v", err)
	}
	if cfg.Mode != gke.ModeNode {
		t.Fatalf("mode = %q, want env override %q", cfg.Mode, gke.ModeNode)
	}
	if cfg.NodeName != "gke-node-7" {
		t.Fatalf("node name = %q, want NODE_NAME", cfg.NodeName)
	}
}

func TestLoadFilterConfig_EnvOnly(t *testing.T) {
	t.Setenv("GKEFILTER__MODE", "2")
	cfg, err := LoadFilterConfig("")
	if err != nil {
		t.Fatalf("LoadFilterConfig: %v", err)
	}
	if cfg.Mode != gke.ModeSystem {
		t.Fatalf("mode = %q", cfg.Mode)
	}
}

func TestLoadFilterConfig_MissingOrBadMode(t *testing.T) {
	t.Setenv("GKEFILTER__MODE", "")
	if _, err := LoadFilterConfig(filepath.Join(t.TempDir(), "missing.yml")); !errors.Is(err, gke.ErrInvalidMode) {
		t.Fatalf("missing mode: want ErrInvalidMode, got %v", err)
	}

	p := writeFile(t, "filter.yml", "mode: \"7\"\n")
	if _, err := LoadFilterConfig(p); !errors.Is(err, gke.ErrInvalidMode) {
		t.Fatalf("bad mode: want ErrInvalidMode, got %v", err)
	}
}

func TestLoadFilterConfig_BadSchema(t *testing.T) {
	p := writeFile(t, "filter.yml", "schema_version: v2\nmode: \"1\"\n")
	if _, err := LoadFilterConfig(p); err == nil {
		t.Fatal("expected schema_version error")
	}
}

func TestLoadFilterConfig_EmptyNodeNameKeepsFileValue(t *testing.T) {
	t.Setenv("NODE_NAME", "")
	p := writeFile(t, "filter.yml", "mode: \"3\"\nnode_name: from-file\n")

	cfg, err := LoadFilterConfig(p)
	if err != nil {
		t.Fatalf("LoadFilterConfig: %v", err)
	}
	if cfg.NodeName != "from-file" {
		t.Fatalf("node name = %q, want value from file", cfg.NodeName)
	}
}

func TestLoadFilterConfigWithMode(t *testing.T) {
	t.Setenv("GKEFILTER__MODE", "")
	p := writeFile(t, "filter.yml", "insert_id_key: insertId\n")

	cfg, err := LoadFilterConfigWithMode(p, gke.ModeContainer)
	if err != nil {
		t.Fatalf("mode override should forgive the missing mode: %v", err)
	}
	if cfg.Mode != gke.ModeContainer || cfg.InsertIDKey != "insertId" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	if _, err := LoadFilterConfigWithMode(p, "9"); !errors.Is(err, gke.ErrInvalidMode) {
		t.Fatalf("bad override: want ErrInvalidMode, got %v", err)
	}
	if _, err := LoadFilterConfigWithMode(p, ""); !errors.Is(err, gke.ErrInvalidMode) {
		t.Fatalf("no override: want ErrInvalidMode, got %v", err)
	}
}

func TestLoadFilterConfigWithMode_KeepsOtherErrors(t *testing.T) {
	p := writeFile(t, "filter.yml", "schema_version: v9\ninsert_id_key: insertId\n")
	_, err := LoadFilterConfigWithMode(p, gke.ModeContainer)
	if err == nil || errors.Is(err, gke.ErrInvalidMode) {
		t.Fatalf("want schema_version error, got %v", err)
	}

	bad := writeFile(t, "broken.yml", "mode: [unterminated\n")
	if _, err := LoadFilterConfigWithMode(bad, gke.ModeSystem); err == nil {
		t.Fatal("want YAML parse error")
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Generator.MaxActions != 2 || cfg.Generator.RateLimit.Requests != 10 || cfg.Generator.Cache.TTLSeconds != 300 {
		t.Fatalf("unexpected defaults: %+v", cfg.Generator)
	}
	if cfg.Budget.MaxTotalMinutes != 1440 {
		t.Fatalf("max total = %d", cfg.Budget.MaxTotalMinutes)
	}
}

func TestFromYAMLOverlaysDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("timezone: Europe/Paris\nbackend:\n  provider: ollama\n  model: llama3.1\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Backend.Provider != "ollama" || cfg.Generator.TimeoutSeconds != 20 {
		t.Fatalf("overlay failed: %+v", cfg)
	}
	if cfg.Location().String() != "Europe/Paris" {
		t.Fatalf("location = %s", cfg.Location())
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"provider":  "backend:\n  provider: bard\n",
		"timezone":  "timezone: Mars/Olympus\n",
		"minutes":   "generator:\n  min_action_minutes: 30\n  max_action_minutes: 10\n",
		"webhook":   "webhooks:\n  - events: [x]\n",
		"max total": "budget:\n  max_total_minutes: 2000\n",
	}
	for name, doc := range cases {
		if _, err := FromYAML([]byte(doc)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadOptionalAndLoad(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg == nil {
		t.Fatalf("expected default config, got %v %v", cfg, err)
	}
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "dv config init") {
		t.Fatalf("expected not found error, got %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "dailyvision.yml"), []byte(GenerateDefault()), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err != nil {
		t.Fatalf("load generated default: %v", err)
	}
}

func TestLocationResolvedOnce(t *testing.T) {
	a := &Config{Timezone: "Asia/Tokyo"}
	b := &Config{Timezone: "Asia/Tokyo"}
	first := a.Location()
	if first.String() != "Asia/Tokyo" {
		t.Fatalf("location = %s", first)
	}
	if a.Location() != first || b.Location() != first {
		t.Fatalf("expected the zone to be loaded once and shared")
	}
	a.Timezone = "UTC"
	if a.Location().String() != "UTC" {
		t.Fatalf("changed zone not picked up: %s", a.Location())
	}
	if (&Config{Timezone: "Mars/Olympus"}).Location() != time.Local {
		t.Fatalf("unknown zone must fall back to local")
	}
}

func TestDefaultTemplateMatchesDefaults(t *testing.T) {
	tmpl := GenerateDefault()
	if !strings.Contains(tmpl, "dv serve") {
		t.Fatalf("template must say where generator limits apply")
	}
	cfg, err := FromYAML([]byte(tmpl))
	if err != nil {
		t.Fatalf("parse template: %v", err)
	}
	if cfg.Generator != Default().Generator {
		t.Fatalf("template generator %+v differs from defaults %+v", cfg.Generator, Default().Generator)
	}
}

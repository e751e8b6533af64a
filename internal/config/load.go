package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// Load reads, expands and strictly decodes a YAML or JSON config file.
// Unknown fields are rejected so typos fail loudly at startup.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, b)
}

func Parse(path string, data []byte) (*Config, error) {
	jb, err := coerceToJSONBytes(path, data)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "webhook"
	}
	if cfg.Bot.WebhookPath == "" {
		cfg.Bot.WebhookPath = "/bot/webhook"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
}

// coerceToJSONBytes converts YAML config to JSON bytes so the strict
// JSON decoder (DisallowUnknownFields) serves both formats. Environment
// references are resolved on the decoded tree, before re-marshaling.
func coerceToJSONBytes(path string, data []byte) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var v any
	if ext == ".yaml" || ext == ".yml" {
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("yaml unmarshal: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("json unmarshal: %w", err)
		}
	}

	v = normalizeYAML(v)
	v, err := resolveEnv(v)
	if err != nil {
		return nil, err
	}

	j, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("config marshal: %w", err)
	}
	return j, nil
}

// normalizeYAML ensures all map keys are strings so the result can be
// JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}

// resolveEnv substitutes values of the exact form "${VAR}" or
// "${VAR:-default}" from the environment. A reference without a default
// to an unset variable is an error: silently sending with an empty bot
// token helps nobody.
func resolveEnv(in any) (any, error) {
	switch x := in.(type) {
	case string:
		return resolveEnvString(x)
	case map[string]any:
		for k, v := range x {
			rv, err := resolveEnv(v)
			if err != nil {
				return nil, err
			}
			x[k] = rv
		}
		return x, nil
	case []any:
		for i := range x {
			rv, err := resolveEnv(x[i])
			if err != nil {
				return nil, err
			}
			x[i] = rv
		}
		return x, nil
	default:
		return in, nil
	}
}

func resolveEnvString(s string) (any, error) {
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return s, nil
	}
	ref := s[2 : len(s)-1]
	if name, def, ok := strings.Cut(ref, ":-"); ok {
		if v, set := os.LookupEnv(name); set {
			return v, nil
		}
		return def, nil
	}
	v, set := os.LookupEnv(ref)
	if !set {
		return nil, fmt.Errorf("environment variable %q is not set (referenced as %s)", ref, s)
	}
	return v, nil
}

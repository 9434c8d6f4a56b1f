// Package config loads daemon configuration with CLI > environment >
// TOML precedence, driven by struct tags on the options struct, and
// watches the TOML file for live reloads.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/camforge/uvchost/internal/logging"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "UVCHOST_"

// LoadConfig fills opts from the TOML file and environment, honoring
// precedence: flags explicitly set on cmd win over environment, which
// wins over the file. The file path is taken from the struct's Config
// field. Tags drive the mapping:
//
//	Port int `toml:"server.port" env:"SERVER_PORT"`
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	changed := make(map[string]bool)
	if cmd != nil {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				changed[f.Name] = true
			}
		})
	}

	var path string
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).Name == "Config" {
			path = v.Field(i).String()
			break
		}
	}

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			var file map[string]any
			if err := toml.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("parsing %s: %w", path, err)
			}
			for i := 0; i < v.NumField(); i++ {
				field, ft := v.Field(i), t.Field(i)
				if changed[flagName(ft.Name)] {
					continue
				}
				if key := ft.Tag.Get("toml"); key != "" {
					if value := lookupDotted(file, key); value != nil {
						setFromTOML(field, value)
					}
				}
			}
		}
	}

	for i := 0; i < v.NumField(); i++ {
		field, ft := v.Field(i), t.Field(i)
		if changed[flagName(ft.Name)] {
			continue
		}
		if key := ft.Tag.Get("env"); key != "" {
			if value := os.Getenv(EnvPrefix + key); value != "" {
				setFromString(field, value)
			}
		}
	}
	return nil
}

// flagName converts a field name to its kebab-case CLI flag,
// "LoggingLevel" -> "logging-level".
func flagName(field string) string {
	var out []rune
	for i, r := range field {
		if i > 0 && unicode.IsUpper(r) {
			out = append(out, '-')
		}
		out = append(out, unicode.ToLower(r))
	}
	return string(out)
}

// lookupDotted walks a nested TOML map by a dot-separated key.
func lookupDotted(data map[string]any, path string) any {
	parts := strings.Split(path, ".")
	node := data
	for i, part := range parts {
		if i == len(parts)-1 {
			return node[part]
		}
		next, ok := node[part].(map[string]any)
		if !ok {
			return nil
		}
		node = next
	}
	return nil
}

func setFromTOML(field reflect.Value, value any) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		if s, ok := value.(string); ok {
			field.SetString(s)
		}
	case reflect.Bool:
		if b, ok := value.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int:
		switch n := value.(type) {
		case int64:
			field.SetInt(n)
		case int:
			field.SetInt(int64(n))
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		if arr, ok := value.([]any); ok {
			out := make([]string, 0, len(arr))
			for _, item := range arr {
				if s, ok := item.(string); ok {
					out = append(out, s)
				}
			}
			field.Set(reflect.ValueOf(out))
		}
	}
}

func setFromString(field reflect.Value, value string) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int:
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			field.SetInt(n)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		parts := strings.Split(value, ",")
		out := make([]string, len(parts))
		for i, p := range parts {
			out[i] = strings.TrimSpace(p)
		}
		field.Set(reflect.ValueOf(out))
	}
}

// LoadLoggingConfig reads the [logging] table from the TOML file.
// Unknown keys under [logging] are per-module level overrides. Missing
// or unreadable files yield the defaults.
func LoadLoggingConfig(path string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}
	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	var file struct {
		Logging map[string]string `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &file); err != nil {
		return cfg
	}
	for key, value := range file.Logging {
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}
	return cfg
}

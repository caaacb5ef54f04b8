// Package config fills flat option structs from a TOML file and the
// environment. Precedence is CLI flags > environment > file > defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smazurov/uvccap/internal/logging"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "UVCCAP_"

// LoadConfig overlays the TOML file named by opts' Config field and the
// environment onto opts, a pointer to a struct. Fields are mapped by their
// `toml:"section.key"` and `env:"NAME"` tags. Flags explicitly set on cmd
// are left alone. A missing file is not an error; a value of the wrong
// type is.
func LoadConfig(opts any, cmd *cobra.Command) error {
	ptr := reflect.ValueOf(opts)
	if ptr.Kind() != reflect.Pointer || ptr.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: expected pointer to struct, got %T", opts)
	}
	v := ptr.Elem()

	file, err := readTOML(configPath(v))
	if err != nil {
		return err
	}
	changed := changedFlags(cmd)

	var errs []error
	t := v.Type()
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() || changed[fieldNameToFlag(sf.Name)] {
			continue
		}
		field := v.Field(i)

		if key := sf.Tag.Get("toml"); key != "" && file != nil {
			if raw := getNestedValue(file, key); raw != nil {
				if err := assignTOML(field, raw); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", key, err))
				}
			}
		}

		if name := sf.Tag.Get("env"); name != "" {
			if raw := os.Getenv(EnvPrefix + name); raw != "" {
				if err := assignString(field, raw); err != nil {
					errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				}
			}
		}
	}
	return errors.Join(errs...)
}

func configPath(v reflect.Value) string {
	if f := v.FieldByName("Config"); f.IsValid() && f.Kind() == reflect.String {
		return f.String()
	}
	return ""
}

// readTOML returns nil for an unset or missing file.
func readTOML(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return doc, nil
}

func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := make(map[string]bool)
	if cmd == nil {
		return changed
	}
	mark := func(f *pflag.Flag) {
		if f.Changed {
			changed[f.Name] = true
		}
	}
	cmd.Flags().VisitAll(mark)
	cmd.PersistentFlags().VisitAll(mark)
	return changed
}

// fieldNameToFlag converts a struct field name to a CLI flag name.
// Example: "LoggingLevel" -> "logging-level", "Width" -> "width".
func fieldNameToFlag(fieldName string) string {
	var b strings.Builder
	for i, r := range fieldName {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte('-')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// getNestedValue looks up a dotted path such as "capture.width".
func getNestedValue(data map[string]any, path string) any {
	var current any = data
	for _, part := range strings.Split(path, ".") {
		table, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = table[part]
	}
	return current
}

// assignTOML stores a decoded TOML value. go-toml yields int64 for
// integers, float64 for floats and []any for arrays.
func assignTOML(field reflect.Value, raw any) error {
	switch field.Kind() {
	case reflect.String:
		if s, ok := raw.(string); ok {
			field.SetString(s)
			return nil
		}
	case reflect.Bool:
		if b, ok := raw.(bool); ok {
			field.SetBool(b)
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if i, ok := raw.(int64); ok {
			return setInt(field, i)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if i, ok := raw.(int64); ok {
			if i < 0 {
				return fmt.Errorf("negative value %d", i)
			}
			return setUint(field, uint64(i))
		}
	case reflect.Float32, reflect.Float64:
		switch f := raw.(type) {
		case float64:
			field.SetFloat(f)
			return nil
		case int64:
			field.SetFloat(float64(f))
			return nil
		}
	case reflect.Slice:
		if items, ok := raw.([]any); ok && field.Type().Elem().Kind() == reflect.String {
			values := make([]string, 0, len(items))
			for _, item := range items {
				s, isString := item.(string)
				if !isString {
					return fmt.Errorf("array item %v is not a string", item)
				}
				values = append(values, s)
			}
			field.Set(reflect.ValueOf(values))
			return nil
		}
	default:
		return nil
	}
	return fmt.Errorf("cannot use %v (%T) as %s", raw, raw, field.Type())
}

// assignString parses an environment value. Lists are comma separated.
func assignString(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		return setInt(field, i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return err
		}
		return setUint(field, u)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	}
	return nil
}

func setInt(field reflect.Value, i int64) error {
	if field.OverflowInt(i) {
		return fmt.Errorf("value %d overflows %s", i, field.Type())
	}
	field.SetInt(i)
	return nil
}

func setUint(field reflect.Value, u uint64) error {
	if field.OverflowUint(u) {
		return fmt.Errorf("value %d overflows %s", u, field.Type())
	}
	field.SetUint(u)
	return nil
}

// LoadLoggingConfig reads the [logging] table of a config file. Module
// levels may be given in [logging.modules] or as extra keys of [logging].
// Defaults are returned when the file is missing or invalid.
func LoadLoggingConfig(configPath string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}

	doc, err := readTOML(configPath)
	if err != nil || doc == nil {
		return cfg
	}
	table, _ := doc["logging"].(map[string]any)

	for key, value := range table {
		switch v := value.(type) {
		case string:
			switch key {
			case "level":
				cfg.Level = v
			case "format":
				cfg.Format = v
			default:
				cfg.Modules[key] = v
			}
		case map[string]any:
			if key != "modules" {
				continue
			}
			for module, level := range v {
				if s, ok := level.(string); ok {
					cfg.Modules[module] = s
				}
			}
		}
	}
	return cfg
}

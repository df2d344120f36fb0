// Package config holds the agent properties. Values come from, in order of
// precedence: explicit Set calls and loaded property files, BESSER_
// environment variables, and the property defaults.
//
// Property files are selected by extension. INI files use one section per
// property group with fully qualified keys:
//
//	[nlp]
//	nlp.language = en
//
// YAML files may use either nested maps or fully qualified keys:
//
//	nlp:
//	  language: en
//	  openai:
//	    api_key: sk-...
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read as a property override.
const EnvPrefix = "BESSER_"

// ErrUnsupportedFormat is returned when a property file extension is not
// .ini, .yaml or .yml.
var ErrUnsupportedFormat = errors.New("config: unsupported property file format")

// ErrPropertyType is returned when a value does not match the kind of the
// property it is set for.
var ErrPropertyType = errors.New("config: property value has the wrong type")

// Properties is a concurrency-safe property store.
type Properties struct {
	mu     sync.RWMutex
	values map[string]any
}

// New returns an empty property store. Every Get falls back to the
// environment and then to the property default.
func New() *Properties {
	return &Properties{values: make(map[string]any)}
}

// Load creates a property store from a file.
func Load(path string) (*Properties, error) {
	p := New()
	if err := p.LoadFile(path); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadFile merges the properties of an .ini or .yaml file into the store.
func (p *Properties) LoadFile(path string) error {
	var (
		values map[string]any
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini":
		values, err = readINI(path)
	case ".yaml", ".yml":
		values, err = readYAML(path)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for k, v := range values {
		p.values[k] = v
	}
	return nil
}

func readINI(path string) (map[string]any, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	values := make(map[string]any)
	for _, section := range file.Sections() {
		for _, key := range section.Keys() {
			values[key.Name()] = key.String()
		}
	}
	return values, nil
}

func readYAML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	values := make(map[string]any)
	flatten("", doc, values)
	return values, nil
}

// flatten turns nested YAML maps into dotted keys. A key that already carries
// its parent prefix ("nlp: {nlp.language: en}") is kept as is.
func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := k
		if prefix != "" && !strings.HasPrefix(k, prefix+".") {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}

// Set stores a value for the property, overriding file, env and default.
// The value must match the property kind. Storing nil leaves the property
// without a value.
func (p *Properties) Set(prop Property, value any) error {
	if err := prop.Check(value); err != nil {
		return err
	}
	p.SetKey(prop.Name, value)
	return nil
}

// SetKey stores a value under a raw property name. Raw names carry no kind,
// so the value is stored unchecked.
func (p *Properties) SetKey(name string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[name] = value
}

// Has reports whether the property has an explicit or environment value.
func (p *Properties) Has(prop Property) bool {
	p.mu.RLock()
	_, ok := p.values[prop.Name]
	p.mu.RUnlock()
	if ok {
		return true
	}
	return getEnv(EnvName(prop), "") != ""
}

// Get returns the raw value of the property, or its default.
func (p *Properties) Get(prop Property) any {
	p.mu.RLock()
	v, ok := p.values[prop.Name]
	p.mu.RUnlock()
	if ok {
		return v
	}
	if env := getEnv(EnvName(prop), ""); env != "" {
		return env
	}
	return prop.Default
}

// String returns the property as a string. Nil values give "".
func (p *Properties) String(prop Property) string {
	v := p.Get(prop)
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Bool returns the property as a bool, falling back to the default when the
// stored value cannot be parsed.
func (p *Properties) Bool(prop Property) bool {
	switch v := p.Get(prop).(type) {
	case bool:
		return v
	case string:
		def, _ := prop.Default.(bool)
		return parseBool(v, def)
	}
	def, _ := prop.Default.(bool)
	return def
}

// Int returns the property as an int. Nil or unparsable values give the
// default, or 0 when the property has no default.
func (p *Properties) Int(prop Property) int {
	def, _ := prop.Default.(int)
	switch v := p.Get(prop).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	case float64:
		return int(v)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

// Float returns the property as a float64.
func (p *Properties) Float(prop Property) float64 {
	def, _ := prop.Default.(float64)
	switch v := p.Get(prop).(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

// EnvName returns the environment variable overriding the property:
// "nlp.openai.api_key" is read from BESSER_NLP_OPENAI_API_KEY.
func EnvName(prop Property) string {
	name := strings.NewReplacer(".", "_", "-", "_").Replace(prop.Name)
	return EnvPrefix + strings.ToUpper(name)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseBool recognizes "true", "1", "yes" as true and "false", "0", "no" as
// false (case-insensitive). Anything else gives the default.
func parseBool(value string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}

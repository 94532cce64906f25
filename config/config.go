// Package config reads the description of a component graph.
//
// A graph is an object whose keys are component ids. Every component is an
// object with a "type", the "inputs" and "outputs" slot to tag mappings and
// free parameters. Keys starting with "#" are ignored and "global_opts" holds
// variables referenced as $(name) inside string values.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

const (
	globalOptsKey = "global_opts"

	keyType    = "type"
	keyInputs  = "inputs"
	keyOutputs = "outputs"
	keyVerbose = "verbose"
	keyStrict  = "strict"
)

var (
	ErrMissingType          = errors.New("config: component has no type")
	ErrMissingParameter     = errors.New("config: missing parameter")
	ErrInvalidParameter     = errors.New("config: invalid parameter")
	ErrSuperfluousParameter = errors.New("config: superfluous parameters")
	ErrUnknownVariable      = errors.New("config: unknown global variable")
	ErrUnknownComponent     = errors.New("config: unknown component")
	ErrMalformedOverride    = errors.New("config: malformed override")
)

// Format is the encoding of a graph file.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath picks the format from the file extension, JSON by default.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

var variableRegexp = regexp.MustCompile(`\$\(([^)]+)\)`)

// Graph is a parsed graph description.
type Graph struct {
	Globals    map[string]string
	Components []*Component
}

// Load reads and parses the graph file at the given path.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data, FormatFromPath(path))
}

// Parse parses a graph description.
func Parse(data []byte, format Format) (*Graph, error) {
	raw := make(map[string]any)

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	default:
		if err := sonic.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("config: parse json: %w", err)
		}
	}

	g := &Graph{
		Globals: make(map[string]string),
	}

	if globals, ok := raw[globalOptsKey]; ok {
		globalMap, ok := globals.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an object", ErrInvalidParameter, globalOptsKey)
		}

		for key, value := range globalMap {
			if isParked(key) {
				continue
			}
			g.Globals[key] = fmt.Sprint(value)
		}
	}

	for _, id := range slices.Sorted(maps.Keys(raw)) {
		if id == globalOptsKey || isParked(id) {
			continue
		}

		body, ok := raw[id].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: component %s is not an object", ErrInvalidParameter, id)
		}

		comp, err := parseComponent(id, body, g.Globals)
		if err != nil {
			return nil, err
		}

		g.Components = append(g.Components, comp)
	}

	return g, nil
}

func isParked(key string) bool {
	return strings.HasPrefix(key, "#")
}

// Component returns the component with the given id.
func (g *Graph) Component(id string) (*Component, bool) {
	for _, comp := range g.Components {
		if comp.ID == id {
			return comp, true
		}
	}
	return nil, false
}

// ApplyOverrides applies "id.param=value" overrides.
// The id "global_opts" overrides a global variable.
func (g *Graph) ApplyOverrides(overrides []string) error {
	for _, override := range overrides {
		path, value, ok := strings.Cut(override, "=")
		if !ok {
			return fmt.Errorf("%w: %q", ErrMalformedOverride, override)
		}

		id, key, ok := strings.Cut(path, ".")
		if !ok || id == "" || key == "" {
			return fmt.Errorf("%w: %q", ErrMalformedOverride, override)
		}

		if id == globalOptsKey {
			g.Globals[key] = value

			for _, comp := range g.Components {
				if err := comp.resolveSlots(); err != nil {
					return err
				}
			}
			continue
		}

		comp, ok := g.Component(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownComponent, id)
		}

		if err := comp.override(key, value); err != nil {
			return err
		}
	}

	return nil
}

func substitute(value string, globals map[string]string) (string, error) {
	var missing string

	res := variableRegexp.ReplaceAllStringFunc(value, func(match string) string {
		name := variableRegexp.FindStringSubmatch(match)[1]

		v, ok := globals[name]
		if !ok {
			missing = name
			return match
		}
		return v
	})

	if missing != "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownVariable, missing)
	}

	return res, nil
}

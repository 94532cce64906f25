package config

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Component is the resolved configuration of one component.
type Component struct {
	ID   string
	Type string

	// Inputs and Outputs map slot names to tags.
	Inputs  map[string]string
	Outputs map[string]string

	Verbose bool
	Strict  bool

	params  map[string]any
	globals map[string]string
	used    map[string]struct{}

	// Slot tags as written, before variable substitution
	rawInputs  map[string]string
	rawOutputs map[string]string
}

// NewComponent returns an empty strict component configuration.
func NewComponent(id, typ string) *Component {
	return &Component{
		ID:   id,
		Type: typ,

		Inputs:  make(map[string]string),
		Outputs: make(map[string]string),

		Strict: true,

		params:  make(map[string]any),
		globals: make(map[string]string),
		used:    make(map[string]struct{}),

		rawInputs:  make(map[string]string),
		rawOutputs: make(map[string]string),
	}
}

func parseComponent(id string, body map[string]any, globals map[string]string) (*Component, error) {
	typ, ok := body[keyType].(string)
	if !ok || typ == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingType, id)
	}

	comp := NewComponent(id, typ)
	comp.globals = globals

	for key, value := range body {
		if isParked(key) {
			continue
		}

		switch key {
		case keyType:

		case keyInputs, keyOutputs:
			slots, err := comp.parseSlots(key, value)
			if err != nil {
				return nil, err
			}

			if key == keyInputs {
				comp.rawInputs = slots
			} else {
				comp.rawOutputs = slots
			}

		case keyVerbose, keyStrict:
			flag, err := toBool(value)
			if err != nil {
				return nil, fmt.Errorf("%w: %s.%s: %w", ErrInvalidParameter, id, key, err)
			}

			if key == keyVerbose {
				comp.Verbose = flag
			} else {
				comp.Strict = flag
			}

		default:
			comp.params[key] = value
		}
	}

	if err := comp.resolveSlots(); err != nil {
		return nil, err
	}

	return comp, nil
}

func (c *Component) parseSlots(key string, value any) (map[string]string, error) {
	raw, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s is not an object", ErrInvalidParameter, c.ID, key)
	}

	slots := make(map[string]string, len(raw))
	for slot, tag := range raw {
		if isParked(slot) {
			continue
		}

		tagStr, ok := tag.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s.%s is not a string", ErrInvalidParameter, c.ID, key, slot)
		}

		slots[slot] = tagStr
	}

	return slots, nil
}

// resolveSlots substitutes the global variables into the slot tags.
func (c *Component) resolveSlots() error {
	for _, dir := range []struct {
		key      string
		raw, dst map[string]string
	}{
		{keyInputs, c.rawInputs, c.Inputs},
		{keyOutputs, c.rawOutputs, c.Outputs},
	} {
		for slot, tag := range dir.raw {
			resolved, err := substitute(tag, c.globals)
			if err != nil {
				return fmt.Errorf("%s.%s.%s: %w", c.ID, dir.key, slot, err)
			}
			dir.dst[slot] = resolved
		}
	}

	return nil
}

func (c *Component) override(key, value string) error {
	switch key {
	case keyType:
		c.Type = value

	case keyVerbose, keyStrict:
		flag, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s.%s: %w", ErrInvalidParameter, c.ID, key, err)
		}

		if key == keyVerbose {
			c.Verbose = flag
		} else {
			c.Strict = flag
		}

	default:
		if slot, ok := strings.CutPrefix(key, keyInputs+"."); ok {
			c.rawInputs[slot] = value
			return c.resolveSlots()
		}
		if slot, ok := strings.CutPrefix(key, keyOutputs+"."); ok {
			c.rawOutputs[slot] = value
			return c.resolveSlots()
		}

		c.params[key] = value
	}

	return nil
}

// Set sets a parameter.
func (c *Component) Set(key string, value any) {
	c.params[key] = value
}

// Has reports whether the parameter is present.
func (c *Component) Has(key string) bool {
	_, ok := c.params[key]
	return ok
}

func (c *Component) lookup(key string) (any, error) {
	value, ok := c.params[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrMissingParameter, c.ID, key)
	}

	c.used[key] = struct{}{}

	if str, ok := value.(string); ok {
		resolved, err := substitute(str, c.globals)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", c.ID, key, err)
		}
		return resolved, nil
	}

	return value, nil
}

func (c *Component) invalid(key string, err error) error {
	return fmt.Errorf("%w: %s.%s: %w", ErrInvalidParameter, c.ID, key, err)
}

func (c *Component) String(key string) (string, error) {
	value, err := c.lookup(key)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(value), nil
}

func (c *Component) Int(key string) (int, error) {
	value, err := c.lookup(key)
	if err != nil {
		return 0, err
	}

	res, err := toInt(value)
	if err != nil {
		return 0, c.invalid(key, err)
	}
	return res, nil
}

func (c *Component) Float(key string) (float64, error) {
	value, err := c.lookup(key)
	if err != nil {
		return 0, err
	}

	res, err := toFloat(value)
	if err != nil {
		return 0, c.invalid(key, err)
	}
	return res, nil
}

func (c *Component) Bool(key string) (bool, error) {
	value, err := c.lookup(key)
	if err != nil {
		return false, err
	}

	res, err := toBool(value)
	if err != nil {
		return false, c.invalid(key, err)
	}
	return res, nil
}

// Duration accepts Go duration strings or a number of seconds.
func (c *Component) Duration(key string) (time.Duration, error) {
	value, err := c.lookup(key)
	if err != nil {
		return 0, err
	}

	if str, ok := value.(string); ok {
		res, err := time.ParseDuration(str)
		if err != nil {
			return 0, c.invalid(key, err)
		}
		return res, nil
	}

	seconds, err := toFloat(value)
	if err != nil {
		return 0, c.invalid(key, err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func (c *Component) StringOr(key, def string) (string, error) {
	if !c.Has(key) {
		return def, nil
	}
	return c.String(key)
}

func (c *Component) IntOr(key string, def int) (int, error) {
	if !c.Has(key) {
		return def, nil
	}
	return c.Int(key)
}

func (c *Component) FloatOr(key string, def float64) (float64, error) {
	if !c.Has(key) {
		return def, nil
	}
	return c.Float(key)
}

func (c *Component) BoolOr(key string, def bool) (bool, error) {
	if !c.Has(key) {
		return def, nil
	}
	return c.Bool(key)
}

func (c *Component) DurationOr(key string, def time.Duration) (time.Duration, error) {
	if !c.Has(key) {
		return def, nil
	}
	return c.Duration(key)
}

// CheckParameters reports the parameters never read by the component.
func (c *Component) CheckParameters() error {
	unused := []string{}
	for key := range c.params {
		if _, ok := c.used[key]; !ok {
			unused = append(unused, key)
		}
	}

	if len(unused) == 0 {
		return nil
	}

	slices.Sort(unused)
	return fmt.Errorf("%w: %s: %s", ErrSuperfluousParameter, c.ID, strings.Join(unused, ", "))
}

// Parameters returns the names of every parameter.
func (c *Component) Parameters() []string {
	return slices.Sorted(maps.Keys(c.params))
}

func toInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%g is not an integer", v)
		}
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("unsupported type %T", value)
	}
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", value)
	}
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		return false, fmt.Errorf("unsupported type %T", value)
	}
}

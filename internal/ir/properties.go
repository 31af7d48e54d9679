package ir

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ForceFailProperty is the fault injection flag honored on Create.
const ForceFailProperty = "FailCreate"

// Properties holds the kind-specific resource properties of an event.
//
// CloudFormation delivers every scalar as a string, so the accessors accept
// both native JSON values and their string forms.
type Properties map[string]any

// String returns the value under key as a string, or "" if absent.
func (p Properties) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// StringOr returns the value under key, or def when it is empty.
func (p Properties) StringOr(key, def string) string {
	if s := p.String(key); s != "" {
		return s
	}
	return def
}

// Require returns the value under key or an error wrapping ErrMissingProperty.
func (p Properties) Require(key string) (string, error) {
	s := strings.TrimSpace(p.String(key))
	if s == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingProperty, key)
	}
	return s, nil
}

// Bool interprets the value under key as a boolean. Unparseable values are false.
func (p Properties) Bool(key string) bool {
	switch val := p[key].(type) {
	case bool:
		return val
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		return err == nil && b
	case float64:
		return val != 0
	}
	return false
}

// Int interprets the value under key as an integer, falling back to def.
func (p Properties) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch val := v.(type) {
	case float64:
		return int(val), nil
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case string:
		if strings.TrimSpace(val) == "" {
			return def, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("property %s: %w", key, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("property %s: unsupported type %T", key, v)
}

// Strings returns the value under key as a list. A single string is split on
// commas, which is how CloudFormation passes CommaDelimitedList parameters.
func (p Properties) Strings(key string) []string {
	var out []string
	switch val := p[key].(type) {
	case []any:
		for _, item := range val {
			if s := strings.TrimSpace(fmt.Sprintf("%v", item)); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, s := range val {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, s := range strings.Split(val, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// StringMap returns the value under key as a flat string map. A JSON object
// encoded as a string is decoded first.
func (p Properties) StringMap(key string) (map[string]string, error) {
	out := make(map[string]string)
	switch val := p[key].(type) {
	case nil:
	case map[string]any:
		for k, v := range val {
			out[k] = fmt.Sprintf("%v", v)
		}
	case map[string]string:
		for k, v := range val {
			out[k] = v
		}
	case string:
		if strings.TrimSpace(val) == "" {
			break
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(val), &m); err != nil {
			return nil, fmt.Errorf("property %s: %w", key, err)
		}
		for k, v := range m {
			out[k] = fmt.Sprintf("%v", v)
		}
	default:
		return nil, fmt.Errorf("property %s: unsupported type %T", key, val)
	}
	return out, nil
}

// Document returns the value under key as a JSON document. Strings are
// returned as-is; maps and lists are marshaled.
func (p Properties) Document(key string) (string, error) {
	switch val := p[key].(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	default:
		b, err := json.Marshal(Normalize(val))
		if err != nil {
			return "", fmt.Errorf("property %s: %w", key, err)
		}
		return string(b), nil
	}
}

// ForceFail reports whether the fault injection flag is set.
func (p Properties) ForceFail() bool {
	return p.Bool(ForceFailProperty)
}

// Normalize converts decoded values with non-string map keys (as produced by
// the Pkl decoder) into JSON-compatible maps.
func Normalize(v any) any {
	switch val := v.(type) {
	case map[any]any:
		newMap := make(map[string]any, len(val))
		for k, v := range val {
			newMap[fmt.Sprintf("%v", k)] = Normalize(v)
		}
		return newMap
	case map[string]any:
		newMap := make(map[string]any, len(val))
		for k, v := range val {
			newMap[k] = Normalize(v)
		}
		return newMap
	case Properties:
		return Normalize(map[string]any(val))
	case []any:
		newSlice := make([]any, len(val))
		for i, v := range val {
			newSlice[i] = Normalize(v)
		}
		return newSlice
	default:
		return val
	}
}

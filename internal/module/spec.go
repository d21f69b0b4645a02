package module

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

type ParamType string

const (
	TypeStr  ParamType = "str"
	TypeBool ParamType = "bool"
	TypeInt  ParamType = "int"
	TypeList ParamType = "list"
	TypeDict ParamType = "dict"
)

// Param is the declarative definition of a single module parameter.
type Param struct {
	Type     ParamType
	Required bool
	Default  any
	Choices  []string
	Aliases  []string
	// Elements is the element type for TypeList parameters. Defaults to str.
	Elements ParamType
}

// RequiredIf makes the listed parameters required when Key is set to Value.
type RequiredIf struct {
	Key      string
	Value    any
	Requires []string
}

// Spec describes a module's parameter surface. Validation resolves aliases, rejects
// unknown keys, coerces JSON/YAML scalar types, applies defaults and enforces the
// cross-parameter rules.
type Spec struct {
	Params            map[string]Param
	MutuallyExclusive [][]string
	RequiredOneOf     [][]string
	RequiredIf        []RequiredIf
}

func (s Spec) Validate(raw map[string]any) (Params, error) {
	params := Params{}

	aliasOf := map[string]string{}
	for name, p := range s.Params {
		for _, alias := range p.Aliases {
			aliasOf[alias] = name
		}
	}

	for key, value := range raw {
		name := key
		if canonical, ok := aliasOf[key]; ok {
			name = canonical
		}

		p, known := s.Params[name]
		if !known {
			return nil, fmt.Errorf("unsupported parameter %q", key)
		}
		if _, dup := params[name]; dup {
			return nil, fmt.Errorf("parameter %q supplied more than once (via an alias)", name)
		}
		if value == nil {
			continue
		}

		coerced, err := coerce(name, p, value)
		if err != nil {
			return nil, err
		}
		params[name] = coerced
	}

	for name, p := range s.Params {
		if _, set := params[name]; set {
			continue
		}
		if p.Default != nil {
			params[name] = p.Default
			continue
		}
		if p.Required {
			return nil, fmt.Errorf("missing required parameter %q", name)
		}
	}

	for name, p := range s.Params {
		value, set := params[name]
		if !set || len(p.Choices) == 0 {
			continue
		}
		str, _ := value.(string)
		if !slices.Contains(p.Choices, str) {
			return nil, fmt.Errorf("value of %q must be one of: %s, got: %v",
				name, strings.Join(p.Choices, ", "), value)
		}
	}

	for _, group := range s.MutuallyExclusive {
		var set []string
		for _, name := range group {
			if _, ok := params[name]; ok {
				set = append(set, name)
			}
		}
		if len(set) > 1 {
			return nil, fmt.Errorf("parameters are mutually exclusive: %s", strings.Join(set, ", "))
		}
	}

	for _, group := range s.RequiredOneOf {
		found := false
		for _, name := range group {
			if _, ok := params[name]; ok {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("one of the following is required: %s", strings.Join(group, ", "))
		}
	}

	for _, rule := range s.RequiredIf {
		value, set := params[rule.Key]
		if !set || value != rule.Value {
			continue
		}
		for _, name := range rule.Requires {
			if _, ok := params[name]; !ok {
				return nil, fmt.Errorf("%s is %v but the following are missing: %s",
					rule.Key, rule.Value, strings.Join(rule.Requires, ", "))
			}
		}
	}

	return params, nil
}

// coerce converts the loosely typed values produced by JSON/YAML decoding into the
// parameter's declared type.
func coerce(name string, p Param, value any) (any, error) {
	switch p.Type {
	case TypeStr, "":
		switch v := value.(type) {
		case string:
			return v, nil
		case bool:
			return strconv.FormatBool(v), nil
		case float64:
			if v == math.Trunc(v) {
				return strconv.FormatInt(int64(v), 10), nil
			}
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		case int:
			return strconv.Itoa(v), nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		}
	case TypeBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.ToLower(v))
			if err == nil {
				return b, nil
			}
		}
	case TypeInt:
		switch v := value.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case uint64:
			return int(v), nil
		case float64:
			if v == math.Trunc(v) {
				return int(v), nil
			}
		case json.Number:
			if i, err := v.Int64(); err == nil {
				return int(i), nil
			}
		case string:
			if i, err := strconv.Atoi(v); err == nil {
				return i, nil
			}
		}
	case TypeList:
		list, ok := value.([]any)
		if !ok {
			// A bare scalar is accepted as a single-element list.
			single, err := coerce(name, Param{Type: elementsOf(p)}, value)
			if err != nil {
				return nil, err
			}
			return []any{single}, nil
		}
		out := make([]any, 0, len(list))
		for _, elem := range list {
			coerced, err := coerce(name, Param{Type: elementsOf(p)}, elem)
			if err != nil {
				return nil, err
			}
			out = append(out, coerced)
		}
		return out, nil
	case TypeDict:
		switch v := value.(type) {
		case map[string]any:
			return v, nil
		case map[any]any:
			out := map[string]any{}
			for key, val := range v {
				out[fmt.Sprintf("%v", key)] = val
			}
			return out, nil
		}
	}

	return nil, fmt.Errorf("parameter %q expects type %s, got %T", name, p.Type, value)
}

func elementsOf(p Param) ParamType {
	if p.Elements == "" {
		return TypeStr
	}
	return p.Elements
}

// MergeParams folds extra parameter definitions into a spec's parameter map. Used to
// attach the shared AWS connection parameters to every module.
func MergeParams(spec Spec, extra map[string]Param) Spec {
	merged := make(map[string]Param, len(spec.Params)+len(extra))
	for name, p := range extra {
		merged[name] = p
	}
	for name, p := range spec.Params {
		merged[name] = p
	}
	spec.Params = merged
	return spec
}

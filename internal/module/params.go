package module

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// Params is a validated, coerced parameter document.
type Params map[string]any

func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

func (p Params) String(name string) string {
	if v, ok := p[name].(string); ok {
		return v
	}
	return ""
}

func (p Params) Bool(name string) bool {
	if v, ok := p[name].(bool); ok {
		return v
	}
	return false
}

func (p Params) Int(name string) int {
	if v, ok := p[name].(int); ok {
		return v
	}
	return 0
}

func (p Params) StringList(name string) []string {
	list, ok := p[name].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, elem := range list {
		if s, ok := elem.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (p Params) Dict(name string) map[string]any {
	if v, ok := p[name].(map[string]any); ok {
		return v
	}
	return nil
}

// StringMap returns a dict parameter with all values rendered as strings. Tag
// parameters arrive this way.
func (p Params) StringMap(name string) map[string]string {
	dict := p.Dict(name)
	if dict == nil {
		return nil
	}
	out := make(map[string]string, len(dict))
	for key, value := range dict {
		out[key] = fmt.Sprintf("%v", value)
	}
	return out
}

// ReadRawParams loads an unvalidated parameter document. A path ending in .yaml or
// .yml is parsed as YAML, any other path as JSON. An empty path reads JSON from r,
// matching the stdin contract. An empty document is allowed.
func ReadRawParams(path string, r io.Reader) (map[string]any, error) {
	var data []byte
	var err error

	if path == "" {
		data, err = io.ReadAll(r)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read parameters: %w", err)
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]any{}, nil
	}

	raw := map[string]any{}
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse YAML parameters: %w", err)
		}
		return raw, nil
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON parameters: %w", err)
	}
	return raw, nil
}

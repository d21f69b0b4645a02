package awsutil

import (
	"encoding/json"
	"unicode"
)

// CamelToSnake converts a single CamelCase or camelCase key to snake_case. Acronym
// runs collapse into one word: HTTPStatus -> http_status, DBInstanceARN -> db_instance_arn.
func CamelToSnake(s string) string {
	runes := []rune(s)
	out := make([]rune, 0, len(runes)+4)

	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			atAcronymEnd := i > 0 && unicode.IsUpper(runes[i-1]) && nextLower

			if prevLower || atAcronymEnd {
				out = append(out, '_')
			}
			out = append(out, unicode.ToLower(r))
			continue
		}
		out = append(out, r)
	}

	return string(out)
}

// SnakeCaseKeys walks a decoded JSON value and converts every map key to snake_case.
// Values are left untouched.
func SnakeCaseKeys(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[CamelToSnake(key)] = SnakeCaseKeys(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = SnakeCaseKeys(elem)
		}
		return out
	default:
		return value
	}
}

// SnakeDict renders an SDK response struct as a snake_case dictionary. SDK types
// carry no JSON tags, so marshalling yields the AWS PascalCase field names, which are
// then converted key by key.
func SnakeDict(s any) (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	dict, _ := SnakeCaseKeys(raw).(map[string]any)
	return dict, nil
}

// SnakeDictSlice is SnakeDict over a slice of response structs.
func SnakeDictSlice[T any](items []T) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		dict, err := SnakeDict(item)
		if err != nil {
			return nil, err
		}
		out = append(out, dict)
	}
	return out, nil
}

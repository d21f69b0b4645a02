package awsutil

import (
	"reflect"
	"sort"
)

// Every AWS service defines its own Tag struct with Key/Value fields, so the
// conversions go through reflection rather than one converter per service.

// TagsToMap converts a service tag slice ([]types.Tag with Key/Value fields, plain or
// pointer strings) into a flat map. Unrecognised shapes yield an empty map.
func TagsToMap[T any](tags []T) map[string]string {
	out := make(map[string]string, len(tags))
	for _, tag := range tags {
		v := reflect.ValueOf(tag)
		if v.Kind() == reflect.Pointer {
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct {
			continue
		}
		key, keyOK := stringField(v, "Key")
		value, valueOK := stringField(v, "Value")
		if keyOK && valueOK {
			out[key] = value
		}
	}
	return out
}

// MapToTags builds a service tag slice from a flat map, sorted by key so output is
// deterministic. T must be a struct with Key and Value fields of string or *string.
func MapToTags[T any](tags map[string]string) []T {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]T, 0, len(tags))
	for _, key := range keys {
		var tag T
		v := reflect.ValueOf(&tag).Elem()
		setStringField(v, "Key", key)
		setStringField(v, "Value", tags[key])
		out = append(out, tag)
	}
	return out
}

// TagDiff compares current tags against desired ones. toSet holds keys to create or
// update; toRemove holds keys present upstream but absent from desired, returned only
// when purge is set.
func TagDiff(current, desired map[string]string, purge bool) (toSet map[string]string, toRemove []string) {
	toSet = map[string]string{}
	for key, value := range desired {
		if existing, ok := current[key]; !ok || existing != value {
			toSet[key] = value
		}
	}

	if purge {
		for key := range current {
			if _, ok := desired[key]; !ok {
				toRemove = append(toRemove, key)
			}
		}
		sort.Strings(toRemove)
	}

	return toSet, toRemove
}

func stringField(v reflect.Value, name string) (string, bool) {
	f := v.FieldByName(name)
	switch {
	case !f.IsValid():
		return "", false
	case f.Kind() == reflect.String:
		return f.String(), true
	case f.Kind() == reflect.Pointer && f.Type().Elem().Kind() == reflect.String:
		if f.IsNil() {
			return "", true
		}
		return f.Elem().String(), true
	}
	return "", false
}

func setStringField(v reflect.Value, name, value string) {
	f := v.FieldByName(name)
	switch {
	case !f.IsValid() || !f.CanSet():
		return
	case f.Kind() == reflect.String:
		f.SetString(value)
	case f.Kind() == reflect.Pointer && f.Type().Elem().Kind() == reflect.String:
		s := value
		f.Set(reflect.ValueOf(&s))
	}
}

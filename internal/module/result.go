package module

import (
	"encoding/json"
	"fmt"
)

// Result is the document a module returns. Arbitrary module facts live in Data and
// are flattened to the top level of the JSON output next to changed/failed/msg.
type Result struct {
	Changed  bool
	Failed   bool
	Msg      string
	Warnings []string
	Data     map[string]any
}

func Failf(format string, args ...any) *Result {
	return &Result{Failed: true, Msg: fmt.Sprintf(format, args...)}
}

// Set records a module fact. Returns the result so facts can be chained.
func (r *Result) Set(key string, value any) *Result {
	if r.Data == nil {
		r.Data = map[string]any{}
	}
	r.Data[key] = value
	return r
}

func (r *Result) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

func (r *Result) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(r.Data)+4)
	for key, value := range r.Data {
		doc[key] = value
	}
	doc["changed"] = r.Changed
	if r.Failed {
		doc["failed"] = true
	}
	if r.Msg != "" {
		doc["msg"] = r.Msg
	}
	if len(r.Warnings) > 0 {
		doc["warnings"] = r.Warnings
	}
	return json.Marshal(doc)
}

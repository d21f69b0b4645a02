package module

import (
	"context"
	"fmt"
	"sort"
)

// Module is a single declarative operation against an AWS service. Modules parse a
// flat parameter document, make one or more SDK calls and report a Result.
type Module interface {
	Name() string
	Summary() string
	// Doc returns the module's markdown documentation.
	Doc() string
	Spec() Spec
	Run(ctx context.Context, req *Request) (*Result, error)
}

// Request carries the validated parameters for a single module invocation.
type Request struct {
	Params    Params
	CheckMode bool
}

type Registry struct {
	modules map[string]Module
}

func NewRegistry() *Registry {
	return &Registry{modules: map[string]Module{}}
}

func (r *Registry) Register(m Module) error {
	if _, exists := r.modules[m.Name()]; exists {
		return fmt.Errorf("module %q registered twice", m.Name())
	}
	r.modules[m.Name()] = m
	return nil
}

// MustRegister panics on duplicate names. Registration happens at startup from a
// static list, so a duplicate is a programming error.
func (r *Registry) MustRegister(modules ...Module) {
	for _, m := range modules {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Get(name string) (Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute validates raw parameters against the module's spec and runs it. Validation
// failures and module errors are both folded into a failed Result so callers always
// have a result document to print.
func Execute(ctx context.Context, m Module, raw map[string]any, checkMode bool) *Result {
	params, err := m.Spec().Validate(raw)
	if err != nil {
		return Failf("parameter validation failed: %v", err)
	}

	result, err := m.Run(ctx, &Request{Params: params, CheckMode: checkMode})
	if err != nil {
		return Failf("%v", err)
	}
	if result == nil {
		result = &Result{}
	}
	return result
}

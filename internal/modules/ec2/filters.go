package ec2

import (
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// buildFilters converts a module's filters dict into EC2 API filters. Values may be a
// scalar or a list; keys are sorted so request shapes are deterministic.
func buildFilters(filters map[string]any) []types.Filter {
	if len(filters) == 0 {
		return nil
	}

	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]types.Filter, 0, len(names))
	for _, name := range names {
		var values []string
		switch v := filters[name].(type) {
		case []any:
			for _, elem := range v {
				values = append(values, fmt.Sprintf("%v", elem))
			}
		default:
			values = []string{fmt.Sprintf("%v", v)}
		}
		out = append(out, types.Filter{Name: aws.String(name), Values: values})
	}
	return out
}

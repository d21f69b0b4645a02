package awsutil

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
)

// ARN wraps a parsed AWS ARN with resource type/id extraction.
//
// Format example:
//
//	arn:partition:service:region:account-id:resource-type/resource-id
type ARN struct {
	arn.ARN
}

func ParseARN(s string) (*ARN, error) {
	parsed, err := arn.Parse(s)
	if err != nil {
		return nil, err
	}
	return &ARN{ARN: parsed}, nil
}

// ResourceType is the segment between the service and the resource id, e.g. "role"
// for arn:aws:iam::123456789012:role/admin. Empty when the resource has no type
// segment (S3 bucket ARNs).
func (a *ARN) ResourceType() string {
	i := strings.IndexFunc(a.Resource, isResourceSeparator)
	if i == -1 {
		return ""
	}
	return a.Resource[:i]
}

// ResourceID is everything after the resource type, including any trailing
// qualifiers, e.g. "ecs-demo-app:1" for a task-definition ARN.
func (a *ARN) ResourceID() string {
	i := strings.IndexFunc(a.Resource, isResourceSeparator)
	if i == -1 {
		return a.Resource
	}
	return a.Resource[i+1:]
}

func isResourceSeparator(r rune) bool {
	return r == '/' || r == ':'
}

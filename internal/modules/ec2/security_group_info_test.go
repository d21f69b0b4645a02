package ec2

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackmill/awsmod/internal/module"
)

// Mock implementation of SecurityGroupAPI
type mockSecurityGroupAPI struct {
	describeSecurityGroupsFunc func(input *ec2.DescribeSecurityGroupsInput) (*ec2.DescribeSecurityGroupsOutput, error)
}

func (m *mockSecurityGroupAPI) DescribeSecurityGroups(_ context.Context, input *ec2.DescribeSecurityGroupsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	return m.describeSecurityGroupsFunc(input)
}

func runSecurityGroupInfo(t *testing.T, api SecurityGroupAPI, raw map[string]any) (*module.Result, error) {
	t.Helper()
	m := &SecurityGroupInfoModule{api: api}
	params, err := m.Spec().Validate(raw)
	require.NoError(t, err)
	return m.Run(context.Background(), &module.Request{Params: params})
}

func TestSecurityGroupInfoModule_PaginatesToExhaustion(t *testing.T) {
	calls := 0
	api := &mockSecurityGroupAPI{
		describeSecurityGroupsFunc: func(input *ec2.DescribeSecurityGroupsInput) (*ec2.DescribeSecurityGroupsOutput, error) {
			calls++
			if calls == 1 {
				return &ec2.DescribeSecurityGroupsOutput{
					SecurityGroups: []types.SecurityGroup{{
						GroupId:   aws.String("sg-web"),
						GroupName: aws.String("web"),
						Tags: []types.Tag{
							{Key: aws.String("env"), Value: aws.String("prod")},
						},
					}},
					NextToken: aws.String("page-2"),
				}, nil
			}
			assert.Equal(t, "page-2", aws.ToString(input.NextToken))
			return &ec2.DescribeSecurityGroupsOutput{
				SecurityGroups: []types.SecurityGroup{{
					GroupId:   aws.String("sg-db"),
					GroupName: aws.String("db"),
				}},
			}, nil
		},
	}

	result, err := runSecurityGroupInfo(t, api, map[string]any{})

	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Equal(t, 2, calls)
	groups := result.Data["security_groups"].([]map[string]any)
	require.Len(t, groups, 2)
	assert.Equal(t, "sg-web", groups[0]["group_id"])
	assert.Equal(t, "sg-db", groups[1]["group_id"])
	assert.Equal(t, map[string]string{"env": "prod"}, groups[0]["tags"])
}

func TestSecurityGroupInfoModule_IDsAndFiltersAreForwarded(t *testing.T) {
	api := &mockSecurityGroupAPI{
		describeSecurityGroupsFunc: func(input *ec2.DescribeSecurityGroupsInput) (*ec2.DescribeSecurityGroupsOutput, error) {
			assert.Equal(t, []string{"sg-web"}, input.GroupIds)
			require.Len(t, input.Filters, 1)
			assert.Equal(t, "vpc-id", aws.ToString(input.Filters[0].Name))
			assert.Equal(t, []string{"vpc-123"}, input.Filters[0].Values)
			return &ec2.DescribeSecurityGroupsOutput{}, nil
		},
	}

	result, err := runSecurityGroupInfo(t, api, map[string]any{
		"group_ids": []any{"sg-web"},
		"filters":   map[string]any{"vpc-id": "vpc-123"},
	})

	require.NoError(t, err)
	assert.Empty(t, result.Data["security_groups"])
}

func TestSecurityGroupInfoModule_UnknownGroupIsEmpty(t *testing.T) {
	api := &mockSecurityGroupAPI{
		describeSecurityGroupsFunc: func(input *ec2.DescribeSecurityGroupsInput) (*ec2.DescribeSecurityGroupsOutput, error) {
			return nil, &smithy.GenericAPIError{Code: "InvalidGroup.NotFound", Message: "gone"}
		},
	}

	result, err := runSecurityGroupInfo(t, api, map[string]any{"group_ids": []any{"sg-ghost"}})

	require.NoError(t, err)
	assert.Empty(t, result.Data["security_groups"])
}

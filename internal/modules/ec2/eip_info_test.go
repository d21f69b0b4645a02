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

func runEIPInfo(t *testing.T, api EIPAPI, raw map[string]any) (*module.Result, error) {
	t.Helper()
	m := &EIPInfoModule{api: api}
	params, err := m.Spec().Validate(raw)
	require.NoError(t, err)
	return m.Run(context.Background(), &module.Request{Params: params})
}

func TestEIPInfoModule_ListsAddressesWithTags(t *testing.T) {
	api := &mockEIPAPI{
		describeAddressesFunc: func(input *ec2.DescribeAddressesInput) (*ec2.DescribeAddressesOutput, error) {
			return &ec2.DescribeAddressesOutput{Addresses: []types.Address{{
				PublicIp:     aws.String("203.0.113.10"),
				AllocationId: aws.String("eipalloc-123"),
				InstanceId:   aws.String("i-abc"),
				Tags: []types.Tag{
					{Key: aws.String("env"), Value: aws.String("prod")},
				},
			}}}, nil
		},
	}

	result, err := runEIPInfo(t, api, map[string]any{})

	require.NoError(t, err)
	assert.False(t, result.Changed)
	addresses := result.Data["addresses"].([]map[string]any)
	require.Len(t, addresses, 1)
	assert.Equal(t, "203.0.113.10", addresses[0]["public_ip"])
	assert.Equal(t, map[string]string{"env": "prod"}, addresses[0]["tags"])
}

func TestEIPInfoModule_FiltersAreForwarded(t *testing.T) {
	api := &mockEIPAPI{
		describeAddressesFunc: func(input *ec2.DescribeAddressesInput) (*ec2.DescribeAddressesOutput, error) {
			require.Len(t, input.Filters, 1)
			assert.Equal(t, "instance-id", aws.ToString(input.Filters[0].Name))
			assert.Equal(t, []string{"i-abc"}, input.Filters[0].Values)
			assert.Equal(t, []string{"203.0.113.10"}, input.PublicIps)
			return &ec2.DescribeAddressesOutput{}, nil
		},
	}

	result, err := runEIPInfo(t, api, map[string]any{
		"filters":    map[string]any{"instance-id": "i-abc"},
		"public_ips": []any{"203.0.113.10"},
	})

	require.NoError(t, err)
	assert.Empty(t, result.Data["addresses"])
}

func TestEIPInfoModule_UnknownAddressIsEmpty(t *testing.T) {
	api := &mockEIPAPI{
		describeAddressesFunc: func(input *ec2.DescribeAddressesInput) (*ec2.DescribeAddressesOutput, error) {
			return nil, &smithy.GenericAPIError{Code: "InvalidAddress.NotFound", Message: "gone"}
		},
	}

	result, err := runEIPInfo(t, api, map[string]any{"public_ips": []any{"198.51.100.9"}})

	require.NoError(t, err)
	assert.Empty(t, result.Data["addresses"])
}

package ec2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/stackmill/awsmod/internal/awserr"
	"github.com/stackmill/awsmod/internal/awsutil"
	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

// EIPInfoModule reports Elastic IP addresses matching the given filters.
type EIPInfoModule struct {
	api EIPAPI
}

func NewEIPInfoModule() *EIPInfoModule { return &EIPInfoModule{} }

func (m *EIPInfoModule) Name() string { return "ec2_eip_info" }

func (m *EIPInfoModule) Summary() string {
	return "Describe EC2 Elastic IP addresses"
}

func (m *EIPInfoModule) Doc() string {
	return `# ec2_eip_info

Describes Elastic IP addresses. Never changes anything.

## Parameters

- ` + "`filters`" + `: EC2 describe-addresses filters, e.g. ` + "`{\"instance-id\": \"i-123\"}`" + `
- ` + "`public_ips`" + `: restrict to specific addresses

## Returns

` + "`addresses`" + `: list of address dictionaries with tags flattened to a map.
`
}

func (m *EIPInfoModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"filters":    {Type: module.TypeDict},
			"public_ips": {Type: module.TypeList},
		},
	}, client.CommonParams())
}

func (m *EIPInfoModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := m.resolveAPI(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	input := &ec2.DescribeAddressesInput{
		Filters:   buildFilters(req.Params.Dict("filters")),
		PublicIps: req.Params.StringList("public_ips"),
	}

	output, err := api.DescribeAddresses(ctx, input)
	if err != nil {
		// A describe for a named address that doesn't exist is an empty
		// result, not a failure.
		if awserr.IsNotFound(err) {
			return (&module.Result{}).Set("addresses", []map[string]any{}), nil
		}
		return nil, fmt.Errorf("failed to describe elastic IPs: %w", err)
	}

	addresses := make([]map[string]any, 0, len(output.Addresses))
	for _, address := range output.Addresses {
		dict, err := awsutil.SnakeDict(address)
		if err != nil {
			return nil, err
		}
		dict["tags"] = awsutil.TagsToMap(address.Tags)
		addresses = append(addresses, dict)
	}

	return (&module.Result{}).Set("addresses", addresses), nil
}

func (m *EIPInfoModule) resolveAPI(ctx context.Context, params module.Params) (EIPAPI, error) {
	if m.api != nil {
		return m.api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return ec2.NewFromConfig(cfg), nil
}

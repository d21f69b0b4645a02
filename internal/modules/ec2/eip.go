package ec2

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/stackmill/awsmod/internal/awserr"
	"github.com/stackmill/awsmod/internal/awsutil"
	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

// EIPAPI is the slice of the EC2 API the Elastic IP modules use.
type EIPAPI interface {
	DescribeAddresses(ctx context.Context, params *ec2.DescribeAddressesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeAddressesOutput, error)
	AllocateAddress(ctx context.Context, params *ec2.AllocateAddressInput, optFns ...func(*ec2.Options)) (*ec2.AllocateAddressOutput, error)
	ReleaseAddress(ctx context.Context, params *ec2.ReleaseAddressInput, optFns ...func(*ec2.Options)) (*ec2.ReleaseAddressOutput, error)
	AssociateAddress(ctx context.Context, params *ec2.AssociateAddressInput, optFns ...func(*ec2.Options)) (*ec2.AssociateAddressOutput, error)
	DisassociateAddress(ctx context.Context, params *ec2.DisassociateAddressInput, optFns ...func(*ec2.Options)) (*ec2.DisassociateAddressOutput, error)
	CreateTags(ctx context.Context, params *ec2.CreateTagsInput, optFns ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error)
	DeleteTags(ctx context.Context, params *ec2.DeleteTagsInput, optFns ...func(*ec2.Options)) (*ec2.DeleteTagsOutput, error)
}

// EIPModule manages Elastic IP allocation, association and release.
type EIPModule struct {
	api EIPAPI
}

func NewEIPModule() *EIPModule { return &EIPModule{} }

func (m *EIPModule) Name() string { return "ec2_eip" }

func (m *EIPModule) Summary() string {
	return "Allocate, associate and release EC2 Elastic IP addresses"
}

func (m *EIPModule) Doc() string {
	return `# ec2_eip

Manages EC2 Elastic IP addresses.

## Parameters

- ` + "`state`" + `: present or absent (default present)
- ` + "`public_ip`" + `: an existing Elastic IP to operate on
- ` + "`device_id`" + `: instance id or network interface id to associate with
- ` + "`reuse_existing_ip_allowed`" + `: reuse a free address instead of allocating (default false)
- ` + "`release_on_disassociation`" + `: release the address after disassociating (default false)
- ` + "`tags`" + ` / ` + "`purge_tags`" + `: tag management on the allocation

## Returns

` + "`public_ip`" + `, ` + "`allocation_id`" + ` of the address.
`
}

func (m *EIPModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"state":                     {Type: module.TypeStr, Default: "present", Choices: []string{"present", "absent"}},
			"public_ip":                 {Type: module.TypeStr, Aliases: []string{"ip"}},
			"device_id":                 {Type: module.TypeStr},
			"reuse_existing_ip_allowed": {Type: module.TypeBool, Default: false},
			"release_on_disassociation": {Type: module.TypeBool, Default: false},
			"allow_reassociation":       {Type: module.TypeBool, Default: false},
			"tags":                      {Type: module.TypeDict},
			"purge_tags":                {Type: module.TypeBool, Default: true},
		},
		RequiredOneOf: [][]string{{"public_ip", "device_id", "tags"}},
	}, client.CommonParams())
}

func (m *EIPModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := m.resolveAPI(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	if req.Params.String("state") == "absent" {
		return m.ensureAbsent(ctx, api, req)
	}
	return m.ensurePresent(ctx, api, req)
}

func (m *EIPModule) ensurePresent(ctx context.Context, api EIPAPI, req *module.Request) (*module.Result, error) {
	result := &module.Result{}

	address, err := findAddress(ctx, api, req.Params.String("public_ip"), req.Params.String("device_id"))
	if err != nil {
		return nil, err
	}

	if address == nil && req.Params.Bool("reuse_existing_ip_allowed") {
		address, err = findFreeAddress(ctx, api)
		if err != nil {
			return nil, err
		}
	}

	if address == nil {
		if req.Params.Has("public_ip") {
			return nil, fmt.Errorf("elastic IP %s does not exist in this account", req.Params.String("public_ip"))
		}
		result.Changed = true
		if req.CheckMode {
			return result, nil
		}
		allocated, err := api.AllocateAddress(ctx, &ec2.AllocateAddressInput{Domain: types.DomainTypeVpc})
		if err != nil {
			return nil, fmt.Errorf("failed to allocate elastic IP: %w", err)
		}
		address = &types.Address{
			AllocationId: allocated.AllocationId,
			PublicIp:     allocated.PublicIp,
		}
	}

	tagsChanged, err := m.syncTags(ctx, api, req, address)
	if err != nil {
		return nil, err
	}
	result.Changed = result.Changed || tagsChanged

	deviceID := req.Params.String("device_id")
	if deviceID != "" && !associatedWith(address, deviceID) {
		result.Changed = true
		if !req.CheckMode {
			input := &ec2.AssociateAddressInput{
				AllocationId:       address.AllocationId,
				AllowReassociation: aws.Bool(req.Params.Bool("allow_reassociation")),
			}
			if strings.HasPrefix(deviceID, "eni-") {
				input.NetworkInterfaceId = aws.String(deviceID)
			} else {
				input.InstanceId = aws.String(deviceID)
			}
			if _, err := api.AssociateAddress(ctx, input); err != nil {
				return nil, fmt.Errorf("failed to associate elastic IP with %s: %w", deviceID, err)
			}
		}
	}

	result.Set("public_ip", aws.ToString(address.PublicIp))
	result.Set("allocation_id", aws.ToString(address.AllocationId))
	return result, nil
}

func (m *EIPModule) ensureAbsent(ctx context.Context, api EIPAPI, req *module.Request) (*module.Result, error) {
	result := &module.Result{}

	address, err := findAddress(ctx, api, req.Params.String("public_ip"), req.Params.String("device_id"))
	if err != nil {
		return nil, err
	}
	if address == nil {
		return result, nil
	}

	deviceGiven := req.Params.Has("device_id")
	release := !deviceGiven || req.Params.Bool("release_on_disassociation")

	result.Changed = true
	if req.CheckMode {
		return result, nil
	}

	if address.AssociationId != nil {
		if _, err := api.DisassociateAddress(ctx, &ec2.DisassociateAddressInput{
			AssociationId: address.AssociationId,
		}); err != nil {
			return nil, fmt.Errorf("failed to disassociate elastic IP: %w", err)
		}
	}

	if release {
		if _, err := api.ReleaseAddress(ctx, &ec2.ReleaseAddressInput{
			AllocationId: address.AllocationId,
		}); err != nil {
			return nil, fmt.Errorf("failed to release elastic IP: %w", err)
		}
	}

	return result, nil
}

func (m *EIPModule) syncTags(ctx context.Context, api EIPAPI, req *module.Request, address *types.Address) (bool, error) {
	if !req.Params.Has("tags") {
		return false, nil
	}

	toSet, toRemove := awsutil.TagDiff(
		awsutil.TagsToMap(address.Tags),
		req.Params.StringMap("tags"),
		req.Params.Bool("purge_tags"),
	)
	if len(toSet) == 0 && len(toRemove) == 0 {
		return false, nil
	}
	if req.CheckMode {
		return true, nil
	}

	resources := []string{aws.ToString(address.AllocationId)}
	if len(toSet) > 0 {
		if _, err := api.CreateTags(ctx, &ec2.CreateTagsInput{
			Resources: resources,
			Tags:      awsutil.MapToTags[types.Tag](toSet),
		}); err != nil {
			return false, fmt.Errorf("failed to tag elastic IP: %w", err)
		}
	}
	if len(toRemove) > 0 {
		tags := make([]types.Tag, 0, len(toRemove))
		for _, key := range toRemove {
			tags = append(tags, types.Tag{Key: aws.String(key)})
		}
		if _, err := api.DeleteTags(ctx, &ec2.DeleteTagsInput{
			Resources: resources,
			Tags:      tags,
		}); err != nil {
			return false, fmt.Errorf("failed to remove elastic IP tags: %w", err)
		}
	}
	return true, nil
}

func (m *EIPModule) resolveAPI(ctx context.Context, params module.Params) (EIPAPI, error) {
	if m.api != nil {
		return m.api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return ec2.NewFromConfig(cfg), nil
}

// findAddress locates an address by public IP, falling back to the address currently
// associated with the device. Returns nil when nothing matches.
func findAddress(ctx context.Context, api EIPAPI, publicIP, deviceID string) (*types.Address, error) {
	input := &ec2.DescribeAddressesInput{}
	switch {
	case publicIP != "":
		input.PublicIps = []string{publicIP}
	case deviceID != "":
		name := "instance-id"
		if strings.HasPrefix(deviceID, "eni-") {
			name = "network-interface-id"
		}
		input.Filters = []types.Filter{{Name: aws.String(name), Values: []string{deviceID}}}
	default:
		return nil, nil
	}

	output, err := api.DescribeAddresses(ctx, input)
	if err != nil {
		if awserr.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to describe elastic IPs: %w", err)
	}
	if len(output.Addresses) == 0 {
		return nil, nil
	}
	return &output.Addresses[0], nil
}

func findFreeAddress(ctx context.Context, api EIPAPI) (*types.Address, error) {
	output, err := api.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to describe elastic IPs: %w", err)
	}
	for _, address := range output.Addresses {
		if address.AssociationId == nil && address.Domain == types.DomainTypeVpc {
			return &address, nil
		}
	}
	return nil, nil
}

func associatedWith(address *types.Address, deviceID string) bool {
	if strings.HasPrefix(deviceID, "eni-") {
		return aws.ToString(address.NetworkInterfaceId) == deviceID
	}
	return aws.ToString(address.InstanceId) == deviceID
}

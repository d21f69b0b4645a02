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

// SecurityGroupAPI is the slice of the EC2 API the security group info module uses.
// The paginator drives DescribeSecurityGroups until the token runs out.
type SecurityGroupAPI interface {
	ec2.DescribeSecurityGroupsAPIClient
}

type SecurityGroupInfoModule struct {
	api SecurityGroupAPI
}

func NewSecurityGroupInfoModule() *SecurityGroupInfoModule { return &SecurityGroupInfoModule{} }

func (m *SecurityGroupInfoModule) Name() string { return "ec2_security_group_info" }

func (m *SecurityGroupInfoModule) Summary() string {
	return "Describe EC2 security groups"
}

func (m *SecurityGroupInfoModule) Doc() string {
	return `# ec2_security_group_info

Describes security groups, paginating through the full result set.

## Parameters

- ` + "`group_ids`" + `: restrict to specific group ids
- ` + "`group_names`" + `: restrict to specific group names
- ` + "`filters`" + `: EC2 describe filters

## Returns

` + "`security_groups`" + `: list of group dictionaries with tags flattened to a map.
`
}

func (m *SecurityGroupInfoModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"group_ids":   {Type: module.TypeList, Aliases: []string{"group_id"}},
			"group_names": {Type: module.TypeList, Aliases: []string{"group_name"}},
			"filters":     {Type: module.TypeDict},
		},
	}, client.CommonParams())
}

func (m *SecurityGroupInfoModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := m.resolveAPI(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	input := &ec2.DescribeSecurityGroupsInput{
		GroupIds:   req.Params.StringList("group_ids"),
		GroupNames: req.Params.StringList("group_names"),
		Filters:    buildFilters(req.Params.Dict("filters")),
	}

	groups := []map[string]any{}
	paginator := ec2.NewDescribeSecurityGroupsPaginator(api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if awserr.IsNotFound(err) {
				return (&module.Result{}).Set("security_groups", []map[string]any{}), nil
			}
			return nil, fmt.Errorf("failed to describe security groups: %w", err)
		}
		for _, group := range page.SecurityGroups {
			dict, err := awsutil.SnakeDict(group)
			if err != nil {
				return nil, err
			}
			dict["tags"] = awsutil.TagsToMap(group.Tags)
			groups = append(groups, dict)
		}
	}

	return (&module.Result{}).Set("security_groups", groups), nil
}

func (m *SecurityGroupInfoModule) resolveAPI(ctx context.Context, params module.Params) (SecurityGroupAPI, error) {
	if m.api != nil {
		return m.api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return ec2.NewFromConfig(cfg), nil
}

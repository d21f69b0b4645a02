// Package mq implements the Amazon MQ broker modules.
package mq

import (
	"context"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mq"
	"github.com/aws/aws-sdk-go-v2/service/mq/types"

	"github.com/stackmill/awsmod/internal/awserr"
	"github.com/stackmill/awsmod/internal/awsutil"
	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

// BrokerAPI is the slice of the MQ API the broker modules use.
type BrokerAPI interface {
	mq.ListBrokersAPIClient
	DescribeBroker(ctx context.Context, params *mq.DescribeBrokerInput, optFns ...func(*mq.Options)) (*mq.DescribeBrokerOutput, error)
	CreateBroker(ctx context.Context, params *mq.CreateBrokerInput, optFns ...func(*mq.Options)) (*mq.CreateBrokerOutput, error)
	UpdateBroker(ctx context.Context, params *mq.UpdateBrokerInput, optFns ...func(*mq.Options)) (*mq.UpdateBrokerOutput, error)
	DeleteBroker(ctx context.Context, params *mq.DeleteBrokerInput, optFns ...func(*mq.Options)) (*mq.DeleteBrokerOutput, error)
	RebootBroker(ctx context.Context, params *mq.RebootBrokerInput, optFns ...func(*mq.Options)) (*mq.RebootBrokerOutput, error)
}

// BrokerModule manages an Amazon MQ broker.
type BrokerModule struct {
	api BrokerAPI
}

func NewBrokerModule() *BrokerModule { return &BrokerModule{} }

func (m *BrokerModule) Name() string { return "mq_broker" }

func (m *BrokerModule) Summary() string {
	return "Create, delete and restart Amazon MQ brokers"
}

func (m *BrokerModule) Doc() string {
	return `# mq_broker

Manages a broker: create with state=present, delete with state=absent, reboot with
state=restarted. Broker names are unique per account, so the module looks the broker
up by name. When the broker already exists, the requested instance type, engine
version and security groups are compared against the running broker and drift is
applied with UpdateBroker; updates take effect at the next maintenance window or
reboot.

## Parameters

- ` + "`broker_name`" + `: the broker name (required)
- ` + "`state`" + `: present, absent or restarted (default present)
- ` + "`engine_type`" + `: ACTIVEMQ or RABBITMQ (default ACTIVEMQ)
- ` + "`engine_version`" + `: engine version; broker default when omitted
- ` + "`host_instance_type`" + `: broker instance size (default mq.t3.micro)
- ` + "`deployment_mode`" + `: SINGLE_INSTANCE, ACTIVE_STANDBY_MULTI_AZ or CLUSTER_MULTI_AZ
- ` + "`username`" + ` / ` + "`password`" + `: initial admin user; required to create
- ` + "`publicly_accessible`" + `: expose the broker outside the VPC (default false)
- ` + "`subnet_ids`" + ` / ` + "`security_groups`" + `: network placement
- ` + "`tags`" + `: tags applied at creation

## Returns

` + "`broker`" + `: the broker dictionary after the change.
`
}

func (m *BrokerModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"broker_name":         {Type: module.TypeStr, Required: true, Aliases: []string{"name"}},
			"state":               {Type: module.TypeStr, Default: "present", Choices: []string{"present", "absent", "restarted"}},
			"engine_type":         {Type: module.TypeStr, Default: "ACTIVEMQ", Choices: []string{"ACTIVEMQ", "RABBITMQ"}},
			"engine_version":      {Type: module.TypeStr},
			"host_instance_type":  {Type: module.TypeStr, Default: "mq.t3.micro"},
			"deployment_mode":     {Type: module.TypeStr, Default: "SINGLE_INSTANCE", Choices: []string{"SINGLE_INSTANCE", "ACTIVE_STANDBY_MULTI_AZ", "CLUSTER_MULTI_AZ"}},
			"username":            {Type: module.TypeStr},
			"password":            {Type: module.TypeStr},
			"publicly_accessible": {Type: module.TypeBool, Default: false},
			"subnet_ids":          {Type: module.TypeList},
			"security_groups":     {Type: module.TypeList},
			"tags":                {Type: module.TypeDict},
		},
	}, client.CommonParams())
}

func (m *BrokerModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := m.resolveAPI(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	name := req.Params.String("broker_name")
	existing, err := findBroker(ctx, api, name)
	if err != nil {
		return nil, err
	}

	switch req.Params.String("state") {
	case "absent":
		if existing == nil {
			return &module.Result{}, nil
		}
		if req.CheckMode {
			return &module.Result{Changed: true}, nil
		}
		if _, err := api.DeleteBroker(ctx, &mq.DeleteBrokerInput{BrokerId: existing.BrokerId}); err != nil {
			return nil, fmt.Errorf("failed to delete broker %s: %w", name, err)
		}
		return &module.Result{Changed: true}, nil

	case "restarted":
		if existing == nil {
			return nil, fmt.Errorf("broker %s does not exist", name)
		}
		if req.CheckMode {
			return &module.Result{Changed: true}, nil
		}
		if _, err := api.RebootBroker(ctx, &mq.RebootBrokerInput{BrokerId: existing.BrokerId}); err != nil {
			return nil, fmt.Errorf("failed to reboot broker %s: %w", name, err)
		}
		return m.describe(ctx, api, aws.ToString(existing.BrokerId), true)
	}

	if existing != nil {
		current, err := api.DescribeBroker(ctx, &mq.DescribeBrokerInput{BrokerId: existing.BrokerId})
		if err != nil {
			return nil, fmt.Errorf("failed to describe broker %s: %w", name, err)
		}

		update := buildBrokerUpdate(req.Params, current)
		if update == nil {
			dict, err := brokerDict(current)
			if err != nil {
				return nil, err
			}
			return (&module.Result{}).Set("broker", dict), nil
		}
		if req.CheckMode {
			return &module.Result{Changed: true}, nil
		}
		if _, err := api.UpdateBroker(ctx, update); err != nil {
			return nil, fmt.Errorf("failed to update broker %s: %w", name, err)
		}
		return m.describe(ctx, api, aws.ToString(existing.BrokerId), true)
	}

	if req.Params.String("username") == "" || req.Params.String("password") == "" {
		return nil, fmt.Errorf("username and password are required to create broker %s", name)
	}
	if req.CheckMode {
		return &module.Result{Changed: true}, nil
	}

	created, err := api.CreateBroker(ctx, m.buildCreateInput(req.Params))
	if err != nil {
		return nil, fmt.Errorf("failed to create broker %s: %w", name, err)
	}
	return m.describe(ctx, api, aws.ToString(created.BrokerId), true)
}

func (m *BrokerModule) buildCreateInput(params module.Params) *mq.CreateBrokerInput {
	input := &mq.CreateBrokerInput{
		BrokerName:              aws.String(params.String("broker_name")),
		EngineType:              types.EngineType(params.String("engine_type")),
		HostInstanceType:        aws.String(params.String("host_instance_type")),
		DeploymentMode:          types.DeploymentMode(params.String("deployment_mode")),
		PubliclyAccessible:      aws.Bool(params.Bool("publicly_accessible")),
		AutoMinorVersionUpgrade: aws.Bool(true),
		Users: []types.User{{
			Username: aws.String(params.String("username")),
			Password: aws.String(params.String("password")),
		}},
	}
	if v := params.String("engine_version"); v != "" {
		input.EngineVersion = aws.String(v)
	}
	if subnets := params.StringList("subnet_ids"); len(subnets) > 0 {
		input.SubnetIds = subnets
	}
	if groups := params.StringList("security_groups"); len(groups) > 0 {
		input.SecurityGroups = groups
	}
	if tags := params.StringMap("tags"); len(tags) > 0 {
		input.Tags = tags
	}
	return input
}

// buildBrokerUpdate compares the requested settings against the running broker and
// returns the update to apply, or nil when nothing drifts. Settings the describe did
// not report are left alone.
func buildBrokerUpdate(params module.Params, current *mq.DescribeBrokerOutput) *mq.UpdateBrokerInput {
	update := &mq.UpdateBrokerInput{BrokerId: current.BrokerId}
	drift := false

	if want := params.String("host_instance_type"); want != "" {
		if got := aws.ToString(current.HostInstanceType); got != "" && got != want {
			update.HostInstanceType = aws.String(want)
			drift = true
		}
	}
	if want := params.String("engine_version"); want != "" {
		if got := aws.ToString(current.EngineVersion); got != "" && got != want {
			update.EngineVersion = aws.String(want)
			drift = true
		}
	}
	if want := params.StringList("security_groups"); len(want) > 0 && len(current.SecurityGroups) > 0 {
		if !sameStringSet(want, current.SecurityGroups) {
			update.SecurityGroups = want
			drift = true
		}
	}

	if !drift {
		return nil
	}
	return update
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as, bs := slices.Clone(a), slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}

func (m *BrokerModule) describe(ctx context.Context, api BrokerAPI, brokerID string, changed bool) (*module.Result, error) {
	dict, err := describeBroker(ctx, api, brokerID)
	if err != nil {
		return nil, err
	}
	return (&module.Result{Changed: changed}).Set("broker", dict), nil
}

func describeBroker(ctx context.Context, api BrokerAPI, brokerID string) (map[string]any, error) {
	output, err := api.DescribeBroker(ctx, &mq.DescribeBrokerInput{BrokerId: aws.String(brokerID)})
	if err != nil {
		return nil, fmt.Errorf("failed to describe broker %s: %w", brokerID, err)
	}
	return brokerDict(output)
}

func brokerDict(output *mq.DescribeBrokerOutput) (map[string]any, error) {
	dict, err := awsutil.SnakeDict(output)
	if err != nil {
		return nil, err
	}
	delete(dict, "result_metadata")
	return dict, nil
}

func findBroker(ctx context.Context, api BrokerAPI, name string) (*types.BrokerSummary, error) {
	paginator := mq.NewListBrokersPaginator(api, &mq.ListBrokersInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if awserr.IsNotFound(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to list brokers: %w", err)
		}
		for _, summary := range page.BrokerSummaries {
			if aws.ToString(summary.BrokerName) == name {
				s := summary
				return &s, nil
			}
		}
	}
	return nil, nil
}

func (m *BrokerModule) resolveAPI(ctx context.Context, params module.Params) (BrokerAPI, error) {
	if m.api != nil {
		return m.api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return mq.NewFromConfig(cfg), nil
}

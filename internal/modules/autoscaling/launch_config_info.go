package autoscaling

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"

	"github.com/stackmill/awsmod/internal/awserr"
	"github.com/stackmill/awsmod/internal/awsutil"
	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

type LaunchConfigAPI interface {
	autoscaling.DescribeLaunchConfigurationsAPIClient
}

// LaunchConfigInfoModule reports Auto Scaling launch configurations.
type LaunchConfigInfoModule struct {
	api LaunchConfigAPI
}

func NewLaunchConfigInfoModule() *LaunchConfigInfoModule { return &LaunchConfigInfoModule{} }

func (m *LaunchConfigInfoModule) Name() string { return "autoscaling_launch_config_info" }

func (m *LaunchConfigInfoModule) Summary() string {
	return "Describe Auto Scaling launch configurations"
}

func (m *LaunchConfigInfoModule) Doc() string {
	return `# autoscaling_launch_config_info

Describes launch configurations, paginating through the full result set.

## Parameters

- ` + "`names`" + `: restrict to specific launch configuration names
- ` + "`sort_order`" + `: ascending or descending by name (default ascending)

## Returns

` + "`launch_configurations`" + `: list of launch configuration dictionaries.
`
}

func (m *LaunchConfigInfoModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"names":      {Type: module.TypeList, Aliases: []string{"name"}},
			"sort_order": {Type: module.TypeStr, Default: "ascending", Choices: []string{"ascending", "descending"}},
		},
	}, client.CommonParams())
}

func (m *LaunchConfigInfoModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := m.resolveAPI(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	input := &autoscaling.DescribeLaunchConfigurationsInput{
		LaunchConfigurationNames: req.Params.StringList("names"),
	}

	configs := []map[string]any{}
	paginator := autoscaling.NewDescribeLaunchConfigurationsPaginator(api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if awserr.IsNotFound(err) {
				return (&module.Result{}).Set("launch_configurations", []map[string]any{}), nil
			}
			return nil, fmt.Errorf("failed to describe launch configurations: %w", err)
		}
		for _, config := range page.LaunchConfigurations {
			dict, err := awsutil.SnakeDict(config)
			if err != nil {
				return nil, err
			}
			dict["name"] = aws.ToString(config.LaunchConfigurationName)
			configs = append(configs, dict)
		}
	}

	descending := req.Params.String("sort_order") == "descending"
	sort.Slice(configs, func(i, j int) bool {
		a, _ := configs[i]["name"].(string)
		b, _ := configs[j]["name"].(string)
		if descending {
			return a > b
		}
		return a < b
	})

	return (&module.Result{}).Set("launch_configurations", configs), nil
}

func (m *LaunchConfigInfoModule) resolveAPI(ctx context.Context, params module.Params) (LaunchConfigAPI, error) {
	if m.api != nil {
		return m.api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return autoscaling.NewFromConfig(cfg), nil
}

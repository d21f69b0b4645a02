// Package costexplorer implements the cost reporting module.
package costexplorer

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"

	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

// CostAPI is the slice of the Cost Explorer API the cost info module uses.
type CostAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// CostInfoModule reports cost and usage grouped by service.
type CostInfoModule struct {
	api CostAPI
}

func NewCostInfoModule() *CostInfoModule { return &CostInfoModule{} }

func (m *CostInfoModule) Name() string { return "ce_cost_info" }

func (m *CostInfoModule) Summary() string {
	return "Report cost and usage from Cost Explorer"
}

func (m *CostInfoModule) Doc() string {
	return `# ce_cost_info

Fetches cost and usage for a time window, grouped by service. Follows the
NextPageToken to exhaustion. Never changes anything.

## Parameters

- ` + "`start`" + ` / ` + "`end`" + `: the window as YYYY-MM-DD; defaults to the last 30 days
- ` + "`granularity`" + `: DAILY or MONTHLY (default MONTHLY)
- ` + "`metric`" + `: the cost metric (default UnblendedCost)

## Returns

` + "`results_by_time`" + `: one entry per period, each with per-service ` + "`groups`" + `.
`
}

func (m *CostInfoModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"start":       {Type: module.TypeStr},
			"end":         {Type: module.TypeStr},
			"granularity": {Type: module.TypeStr, Default: "MONTHLY", Choices: []string{"DAILY", "MONTHLY"}},
			"metric":      {Type: module.TypeStr, Default: "UnblendedCost", Choices: []string{"UnblendedCost", "BlendedCost", "AmortizedCost", "NetUnblendedCost", "UsageQuantity"}},
		},
	}, client.CommonParams())
}

func (m *CostInfoModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := m.resolveAPI(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	start, end, err := window(req.Params)
	if err != nil {
		return nil, err
	}
	metric := req.Params.String("metric")

	input := &costexplorer.GetCostAndUsageInput{
		TimePeriod:  &types.DateInterval{Start: aws.String(start), End: aws.String(end)},
		Granularity: types.Granularity(req.Params.String("granularity")),
		Metrics:     []string{metric},
		GroupBy: []types.GroupDefinition{{
			Type: types.GroupDefinitionTypeDimension,
			Key:  aws.String("SERVICE"),
		}},
	}

	periods := []map[string]any{}
	for {
		output, err := api.GetCostAndUsage(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to get cost and usage: %w", err)
		}

		for _, result := range output.ResultsByTime {
			period := map[string]any{
				"time_period": map[string]string{
					"start": aws.ToString(result.TimePeriod.Start),
					"end":   aws.ToString(result.TimePeriod.End),
				},
				"estimated": result.Estimated,
			}

			groups := []map[string]any{}
			for _, group := range result.Groups {
				entry := map[string]any{"keys": group.Keys}
				if value, ok := group.Metrics[metric]; ok {
					entry["amount"] = aws.ToString(value.Amount)
					entry["unit"] = aws.ToString(value.Unit)
				}
				groups = append(groups, entry)
			}
			period["groups"] = groups
			periods = append(periods, period)
		}

		if aws.ToString(output.NextPageToken) == "" {
			break
		}
		input.NextPageToken = output.NextPageToken
	}

	result := &module.Result{}
	result.Set("results_by_time", periods)
	result.Set("time_period", map[string]string{"start": start, "end": end})
	return result, nil
}

func window(params module.Params) (string, string, error) {
	const layout = "2006-01-02"

	start := params.String("start")
	end := params.String("end")
	if start == "" {
		start = time.Now().UTC().AddDate(0, 0, -30).Format(layout)
	}
	if end == "" {
		end = time.Now().UTC().Format(layout)
	}

	for _, date := range []string{start, end} {
		if _, err := time.Parse(layout, date); err != nil {
			return "", "", fmt.Errorf("date %q is not in YYYY-MM-DD form", date)
		}
	}
	return start, end, nil
}

func (m *CostInfoModule) resolveAPI(ctx context.Context, params module.Params) (CostAPI, error) {
	if m.api != nil {
		return m.api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return costexplorer.NewFromConfig(cfg), nil
}

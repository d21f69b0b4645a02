package cloudwatch

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/stackmill/awsmod/internal/awsutil"
	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

// AlarmAPI is the slice of the CloudWatch API the metric alarm module uses.
type AlarmAPI interface {
	DescribeAlarms(ctx context.Context, params *cloudwatch.DescribeAlarmsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.DescribeAlarmsOutput, error)
	PutMetricAlarm(ctx context.Context, params *cloudwatch.PutMetricAlarmInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricAlarmOutput, error)
	DeleteAlarms(ctx context.Context, params *cloudwatch.DeleteAlarmsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.DeleteAlarmsOutput, error)
}

var comparisonOperators = []string{
	"GreaterThanOrEqualToThreshold",
	"GreaterThanThreshold",
	"LessThanThreshold",
	"LessThanOrEqualToThreshold",
}

// AlarmModule manages a single metric alarm.
type AlarmModule struct {
	api AlarmAPI
}

func NewAlarmModule() *AlarmModule { return &AlarmModule{} }

func (m *AlarmModule) Name() string { return "cloudwatch_metric_alarm" }

func (m *AlarmModule) Summary() string {
	return "Create, update and delete CloudWatch metric alarms"
}

func (m *AlarmModule) Doc() string {
	return `# cloudwatch_metric_alarm

Manages a metric alarm. PutMetricAlarm replaces the whole alarm, so the module
compares the existing alarm's definition field by field and only calls the API when
something drifted.

## Parameters

- ` + "`name`" + `: the alarm name (required)
- ` + "`state`" + `: present or absent (default present)
- ` + "`metric_name`" + ` / ` + "`namespace`" + `: the metric to watch; required to create
- ` + "`statistic`" + `: Average, Sum, Minimum, Maximum or SampleCount (default Average)
- ` + "`comparison`" + `: threshold comparison operator
- ` + "`threshold`" + `: the threshold value
- ` + "`period`" + `: evaluation period in seconds (default 300)
- ` + "`evaluation_periods`" + `: consecutive periods breaching before alarming (default 1)
- ` + "`dimensions`" + `: metric dimensions as a dictionary
- ` + "`alarm_actions`" + `: ARNs invoked on ALARM
- ` + "`description`" + `: alarm description

## Returns

` + "`alarm`" + `: the alarm dictionary after the change.
`
}

func (m *AlarmModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"name":               {Type: module.TypeStr, Required: true, Aliases: []string{"alarm_name"}},
			"state":              {Type: module.TypeStr, Default: "present", Choices: []string{"present", "absent"}},
			"metric_name":        {Type: module.TypeStr, Aliases: []string{"metric"}},
			"namespace":          {Type: module.TypeStr},
			"statistic":          {Type: module.TypeStr, Default: "Average", Choices: []string{"Average", "Sum", "Minimum", "Maximum", "SampleCount"}},
			"comparison":         {Type: module.TypeStr, Choices: comparisonOperators},
			"threshold":          {Type: module.TypeStr},
			"period":             {Type: module.TypeInt, Default: 300},
			"evaluation_periods": {Type: module.TypeInt, Default: 1},
			"dimensions":         {Type: module.TypeDict},
			"alarm_actions":      {Type: module.TypeList},
			"description":        {Type: module.TypeStr, Aliases: []string{"alarm_description"}},
		},
		RequiredIf: []module.RequiredIf{
			{Key: "state", Value: "present", Requires: []string{"metric_name", "namespace", "comparison", "threshold"}},
		},
	}, client.CommonParams())
}

func (m *AlarmModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := m.resolveAPI(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	name := req.Params.String("name")
	existing, err := findAlarm(ctx, api, name)
	if err != nil {
		return nil, err
	}

	if req.Params.String("state") == "absent" {
		if existing == nil {
			return &module.Result{}, nil
		}
		if req.CheckMode {
			return &module.Result{Changed: true}, nil
		}
		if _, err := api.DeleteAlarms(ctx, &cloudwatch.DeleteAlarmsInput{AlarmNames: []string{name}}); err != nil {
			return nil, fmt.Errorf("failed to delete alarm %s: %w", name, err)
		}
		return &module.Result{Changed: true}, nil
	}

	input, err := m.buildInput(req.Params)
	if err != nil {
		return nil, err
	}

	result := &module.Result{Changed: existing == nil || alarmDrifted(existing, input)}
	if !result.Changed || req.CheckMode {
		if existing != nil {
			dict, err := awsutil.SnakeDict(existing)
			if err != nil {
				return nil, err
			}
			result.Set("alarm", dict)
		}
		return result, nil
	}

	if _, err := api.PutMetricAlarm(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to put alarm %s: %w", name, err)
	}

	updated, err := findAlarm(ctx, api, name)
	if err != nil {
		return nil, err
	}
	if updated != nil {
		dict, err := awsutil.SnakeDict(updated)
		if err != nil {
			return nil, err
		}
		result.Set("alarm", dict)
	}
	return result, nil
}

func (m *AlarmModule) buildInput(params module.Params) (*cloudwatch.PutMetricAlarmInput, error) {
	var threshold float64
	if _, err := fmt.Sscanf(params.String("threshold"), "%f", &threshold); err != nil {
		return nil, fmt.Errorf("threshold %q is not a number", params.String("threshold"))
	}

	input := &cloudwatch.PutMetricAlarmInput{
		AlarmName:          aws.String(params.String("name")),
		MetricName:         aws.String(params.String("metric_name")),
		Namespace:          aws.String(params.String("namespace")),
		Statistic:          types.Statistic(params.String("statistic")),
		ComparisonOperator: types.ComparisonOperator(params.String("comparison")),
		Threshold:          aws.Float64(threshold),
		Period:             aws.Int32(int32(params.Int("period"))),
		EvaluationPeriods:  aws.Int32(int32(params.Int("evaluation_periods"))),
		AlarmActions:       params.StringList("alarm_actions"),
	}
	if desc := params.String("description"); desc != "" {
		input.AlarmDescription = aws.String(desc)
	}

	dims := params.StringMap("dimensions")
	names := make([]string, 0, len(dims))
	for name := range dims {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		input.Dimensions = append(input.Dimensions, types.Dimension{
			Name:  aws.String(name),
			Value: aws.String(dims[name]),
		})
	}
	return input, nil
}

func alarmDrifted(current *types.MetricAlarm, desired *cloudwatch.PutMetricAlarmInput) bool {
	if aws.ToString(current.MetricName) != aws.ToString(desired.MetricName) ||
		aws.ToString(current.Namespace) != aws.ToString(desired.Namespace) ||
		current.Statistic != desired.Statistic ||
		current.ComparisonOperator != desired.ComparisonOperator ||
		aws.ToFloat64(current.Threshold) != aws.ToFloat64(desired.Threshold) ||
		aws.ToInt32(current.Period) != aws.ToInt32(desired.Period) ||
		aws.ToInt32(current.EvaluationPeriods) != aws.ToInt32(desired.EvaluationPeriods) ||
		aws.ToString(current.AlarmDescription) != aws.ToString(desired.AlarmDescription) {
		return true
	}

	if len(current.AlarmActions) != len(desired.AlarmActions) {
		return true
	}
	for i, action := range desired.AlarmActions {
		if current.AlarmActions[i] != action {
			return true
		}
	}

	if len(current.Dimensions) != len(desired.Dimensions) {
		return true
	}
	currentDims := map[string]string{}
	for _, dim := range current.Dimensions {
		currentDims[aws.ToString(dim.Name)] = aws.ToString(dim.Value)
	}
	for _, dim := range desired.Dimensions {
		if currentDims[aws.ToString(dim.Name)] != aws.ToString(dim.Value) {
			return true
		}
	}
	return false
}

func findAlarm(ctx context.Context, api AlarmAPI, name string) (*types.MetricAlarm, error) {
	output, err := api.DescribeAlarms(ctx, &cloudwatch.DescribeAlarmsInput{AlarmNames: []string{name}})
	if err != nil {
		return nil, fmt.Errorf("failed to describe alarm %s: %w", name, err)
	}
	if len(output.MetricAlarms) == 0 {
		return nil, nil
	}
	return &output.MetricAlarms[0], nil
}

func (m *AlarmModule) resolveAPI(ctx context.Context, params module.Params) (AlarmAPI, error) {
	if m.api != nil {
		return m.api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return cloudwatch.NewFromConfig(cfg), nil
}

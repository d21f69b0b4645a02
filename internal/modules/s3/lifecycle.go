package s3

import (
	"context"
	"fmt"
	"reflect"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/stackmill/awsmod/internal/awserr"
	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

// LifecycleAPI is the slice of the S3 API the lifecycle module uses.
type LifecycleAPI interface {
	GetBucketLifecycleConfiguration(ctx context.Context, params *s3.GetBucketLifecycleConfigurationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLifecycleConfigurationOutput, error)
	PutBucketLifecycleConfiguration(ctx context.Context, params *s3.PutBucketLifecycleConfigurationInput, optFns ...func(*s3.Options)) (*s3.PutBucketLifecycleConfigurationOutput, error)
	DeleteBucketLifecycle(ctx context.Context, params *s3.DeleteBucketLifecycleInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketLifecycleOutput, error)
}

// LifecycleModule manages a single lifecycle rule on a bucket, merged with the rules
// already present.
type LifecycleModule struct {
	api LifecycleAPI
}

func NewLifecycleModule() *LifecycleModule { return &LifecycleModule{} }

func (m *LifecycleModule) Name() string { return "s3_lifecycle" }

func (m *LifecycleModule) Summary() string {
	return "Manage S3 bucket lifecycle rules"
}

func (m *LifecycleModule) Doc() string {
	return `# s3_lifecycle

Manages one expiration lifecycle rule per invocation, keyed by rule id. Other rules on
the bucket are left in place.

## Parameters

- ` + "`bucket`" + `: the bucket (required)
- ` + "`rule_id`" + `: the rule to manage (required)
- ` + "`state`" + `: present or absent (default present)
- ` + "`prefix`" + `: key prefix the rule applies to (default: whole bucket)
- ` + "`expiration_days`" + `: days until objects expire; required for state=present
- ` + "`status`" + `: enabled or disabled (default enabled)

## Returns

` + "`rules`" + `: the bucket's lifecycle rule ids after the change.
`
}

func (m *LifecycleModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"bucket":          {Type: module.TypeStr, Required: true, Aliases: []string{"name"}},
			"rule_id":         {Type: module.TypeStr, Required: true},
			"state":           {Type: module.TypeStr, Default: "present", Choices: []string{"present", "absent"}},
			"prefix":          {Type: module.TypeStr, Default: ""},
			"expiration_days": {Type: module.TypeInt},
			"status":          {Type: module.TypeStr, Default: "enabled", Choices: []string{"enabled", "disabled"}},
		},
		RequiredIf: []module.RequiredIf{{Key: "state", Value: "present", Requires: []string{"expiration_days"}}},
	}, client.CommonParams())
}

func (m *LifecycleModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := m.resolveAPI(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	bucket := req.Params.String("bucket")
	ruleID := req.Params.String("rule_id")

	current, err := currentRules(ctx, api, bucket)
	if err != nil {
		return nil, err
	}

	var keep []types.LifecycleRule
	var existing *types.LifecycleRule
	for _, rule := range current {
		if aws.ToString(rule.ID) == ruleID {
			r := rule
			existing = &r
			continue
		}
		keep = append(keep, rule)
	}

	result := &module.Result{}

	if req.Params.String("state") == "absent" {
		if existing == nil {
			result.Set("rules", ruleIDs(current))
			return result, nil
		}
		result.Changed = true
		if req.CheckMode {
			return result, nil
		}
		if len(keep) == 0 {
			if _, err := api.DeleteBucketLifecycle(ctx, &s3.DeleteBucketLifecycleInput{
				Bucket: aws.String(bucket),
			}); err != nil {
				return nil, fmt.Errorf("failed to delete lifecycle configuration on %s: %w", bucket, err)
			}
		} else if err := putRules(ctx, api, bucket, keep); err != nil {
			return nil, err
		}
		result.Set("rules", ruleIDs(keep))
		return result, nil
	}

	desired := m.buildRule(req.Params)
	if existing != nil && reflect.DeepEqual(*existing, desired) {
		result.Set("rules", ruleIDs(current))
		return result, nil
	}

	result.Changed = true
	if req.CheckMode {
		return result, nil
	}

	merged := append(keep, desired)
	if err := putRules(ctx, api, bucket, merged); err != nil {
		return nil, err
	}
	result.Set("rules", ruleIDs(merged))
	return result, nil
}

func (m *LifecycleModule) buildRule(params module.Params) types.LifecycleRule {
	status := types.ExpirationStatusEnabled
	if params.String("status") == "disabled" {
		status = types.ExpirationStatusDisabled
	}

	return types.LifecycleRule{
		ID:     aws.String(params.String("rule_id")),
		Status: status,
		Filter: &types.LifecycleRuleFilter{
			Prefix: aws.String(params.String("prefix")),
		},
		Expiration: &types.LifecycleExpiration{
			Days: aws.Int32(int32(params.Int("expiration_days"))),
		},
	}
}

func (m *LifecycleModule) resolveAPI(ctx context.Context, params module.Params) (LifecycleAPI, error) {
	if m.api != nil {
		return m.api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg), nil
}

func currentRules(ctx context.Context, api LifecycleAPI, bucket string) ([]types.LifecycleRule, error) {
	output, err := api.GetBucketLifecycleConfiguration(ctx, &s3.GetBucketLifecycleConfigurationInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		// No configuration yet is a normal starting point.
		if awserr.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lifecycle configuration on %s: %w", bucket, err)
	}
	return output.Rules, nil
}

func putRules(ctx context.Context, api LifecycleAPI, bucket string, rules []types.LifecycleRule) error {
	if _, err := api.PutBucketLifecycleConfiguration(ctx, &s3.PutBucketLifecycleConfigurationInput{
		Bucket: aws.String(bucket),
		LifecycleConfiguration: &types.BucketLifecycleConfiguration{
			Rules: rules,
		},
	}); err != nil {
		return fmt.Errorf("failed to put lifecycle configuration on %s: %w", bucket, err)
	}
	return nil
}

func ruleIDs(rules []types.LifecycleRule) []string {
	ids := make([]string, 0, len(rules))
	for _, rule := range rules {
		ids = append(ids, aws.ToString(rule.ID))
	}
	return ids
}

package cloudtrail

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"

	"github.com/stackmill/awsmod/internal/awserr"
	"github.com/stackmill/awsmod/internal/awsutil"
	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

// TrailAPI is the slice of the CloudTrail API the trail modules use.
type TrailAPI interface {
	DescribeTrails(ctx context.Context, params *cloudtrail.DescribeTrailsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.DescribeTrailsOutput, error)
	GetTrailStatus(ctx context.Context, params *cloudtrail.GetTrailStatusInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.GetTrailStatusOutput, error)
	CreateTrail(ctx context.Context, params *cloudtrail.CreateTrailInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.CreateTrailOutput, error)
	UpdateTrail(ctx context.Context, params *cloudtrail.UpdateTrailInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.UpdateTrailOutput, error)
	DeleteTrail(ctx context.Context, params *cloudtrail.DeleteTrailInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.DeleteTrailOutput, error)
	StartLogging(ctx context.Context, params *cloudtrail.StartLoggingInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.StartLoggingOutput, error)
	StopLogging(ctx context.Context, params *cloudtrail.StopLoggingInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.StopLoggingOutput, error)
	ListTags(ctx context.Context, params *cloudtrail.ListTagsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.ListTagsOutput, error)
	AddTags(ctx context.Context, params *cloudtrail.AddTagsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.AddTagsOutput, error)
	RemoveTags(ctx context.Context, params *cloudtrail.RemoveTagsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.RemoveTagsOutput, error)
}

// TrailModule manages a CloudTrail trail and its logging state.
type TrailModule struct {
	api TrailAPI
}

func NewTrailModule() *TrailModule { return &TrailModule{} }

func (m *TrailModule) Name() string { return "cloudtrail" }

func (m *TrailModule) Summary() string {
	return "Create, update and delete CloudTrail trails"
}

func (m *TrailModule) Doc() string {
	return `# cloudtrail

Manages a trail: existence, delivery bucket, multi-region flag, logging state and
tags.

## Parameters

- ` + "`name`" + `: the trail name (required)
- ` + "`state`" + `: present or absent (default present)
- ` + "`s3_bucket_name`" + `: delivery bucket; required to create
- ` + "`s3_key_prefix`" + `: delivery key prefix
- ` + "`is_multi_region_trail`" + `: record events from all regions (default false)
- ` + "`enable_logging`" + `: whether the trail should be logging (default true)
- ` + "`tags`" + ` / ` + "`purge_tags`" + `: tag management

## Returns

` + "`trail`" + `: the trail dictionary including ` + "`is_logging`" + `.
`
}

func (m *TrailModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"name":                  {Type: module.TypeStr, Required: true},
			"state":                 {Type: module.TypeStr, Default: "present", Choices: []string{"present", "absent"}},
			"s3_bucket_name":        {Type: module.TypeStr},
			"s3_key_prefix":         {Type: module.TypeStr},
			"is_multi_region_trail": {Type: module.TypeBool, Default: false},
			"enable_logging":        {Type: module.TypeBool, Default: true},
			"tags":                  {Type: module.TypeDict},
			"purge_tags":            {Type: module.TypeBool, Default: true},
		},
	}, client.CommonParams())
}

func (m *TrailModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := resolveAPI(ctx, m.api, req.Params)
	if err != nil {
		return nil, err
	}

	name := req.Params.String("name")
	existing, err := findTrail(ctx, api, name)
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
		if _, err := api.DeleteTrail(ctx, &cloudtrail.DeleteTrailInput{Name: existing.TrailARN}); err != nil {
			return nil, fmt.Errorf("failed to delete trail %s: %w", name, err)
		}
		return &module.Result{Changed: true}, nil
	}

	result := &module.Result{}

	if existing == nil {
		bucket := req.Params.String("s3_bucket_name")
		if bucket == "" {
			return nil, fmt.Errorf("s3_bucket_name is required to create trail %s", name)
		}
		result.Changed = true
		if req.CheckMode {
			return result, nil
		}

		input := &cloudtrail.CreateTrailInput{
			Name:               aws.String(name),
			S3BucketName:       aws.String(bucket),
			IsMultiRegionTrail: aws.Bool(req.Params.Bool("is_multi_region_trail")),
		}
		if prefix := req.Params.String("s3_key_prefix"); prefix != "" {
			input.S3KeyPrefix = aws.String(prefix)
		}
		created, err := api.CreateTrail(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to create trail %s: %w", name, err)
		}
		existing = &types.Trail{
			Name:               created.Name,
			TrailARN:           created.TrailARN,
			S3BucketName:       created.S3BucketName,
			S3KeyPrefix:        created.S3KeyPrefix,
			IsMultiRegionTrail: created.IsMultiRegionTrail,
		}
	} else {
		updated, err := m.reconcileSettings(ctx, api, req, existing)
		if err != nil {
			return nil, err
		}
		result.Changed = result.Changed || updated
	}

	tagsChanged, err := m.syncTags(ctx, api, req, aws.ToString(existing.TrailARN))
	if err != nil {
		return nil, err
	}
	result.Changed = result.Changed || tagsChanged

	isLogging, loggingChanged, err := m.reconcileLogging(ctx, api, req, aws.ToString(existing.TrailARN))
	if err != nil {
		return nil, err
	}
	result.Changed = result.Changed || loggingChanged

	dict, err := awsutil.SnakeDict(existing)
	if err != nil {
		return nil, err
	}
	dict["is_logging"] = isLogging
	result.Set("trail", dict)
	return result, nil
}

// reconcileSettings updates bucket, prefix and region scope when they drift from the
// requested values.
func (m *TrailModule) reconcileSettings(ctx context.Context, api TrailAPI, req *module.Request, trail *types.Trail) (bool, error) {
	input := &cloudtrail.UpdateTrailInput{Name: trail.TrailARN}
	drifted := false

	if bucket := req.Params.String("s3_bucket_name"); bucket != "" && bucket != aws.ToString(trail.S3BucketName) {
		input.S3BucketName = aws.String(bucket)
		drifted = true
	}
	if req.Params.Has("s3_key_prefix") {
		if prefix := req.Params.String("s3_key_prefix"); prefix != aws.ToString(trail.S3KeyPrefix) {
			input.S3KeyPrefix = aws.String(prefix)
			drifted = true
		}
	}
	if multiRegion := req.Params.Bool("is_multi_region_trail"); multiRegion != aws.ToBool(trail.IsMultiRegionTrail) {
		input.IsMultiRegionTrail = aws.Bool(multiRegion)
		drifted = true
	}

	if !drifted {
		return false, nil
	}
	if req.CheckMode {
		return true, nil
	}
	if _, err := api.UpdateTrail(ctx, input); err != nil {
		return false, fmt.Errorf("failed to update trail %s: %w", aws.ToString(trail.Name), err)
	}
	return true, nil
}

func (m *TrailModule) reconcileLogging(ctx context.Context, api TrailAPI, req *module.Request, trailARN string) (bool, bool, error) {
	// A trail created in check mode has no ARN to query.
	if trailARN == "" {
		return req.Params.Bool("enable_logging"), false, nil
	}

	status, err := api.GetTrailStatus(ctx, &cloudtrail.GetTrailStatusInput{Name: aws.String(trailARN)})
	if err != nil {
		return false, false, fmt.Errorf("failed to get trail status: %w", err)
	}

	isLogging := aws.ToBool(status.IsLogging)
	want := req.Params.Bool("enable_logging")
	if isLogging == want {
		return isLogging, false, nil
	}
	if req.CheckMode {
		return want, true, nil
	}

	if want {
		_, err = api.StartLogging(ctx, &cloudtrail.StartLoggingInput{Name: aws.String(trailARN)})
	} else {
		_, err = api.StopLogging(ctx, &cloudtrail.StopLoggingInput{Name: aws.String(trailARN)})
	}
	if err != nil {
		return isLogging, false, fmt.Errorf("failed to change logging state: %w", err)
	}
	return want, true, nil
}

func (m *TrailModule) syncTags(ctx context.Context, api TrailAPI, req *module.Request, trailARN string) (bool, error) {
	if !req.Params.Has("tags") || trailARN == "" {
		return false, nil
	}

	listed, err := api.ListTags(ctx, &cloudtrail.ListTagsInput{ResourceIdList: []string{trailARN}})
	if err != nil {
		return false, fmt.Errorf("failed to list trail tags: %w", err)
	}

	current := map[string]string{}
	for _, resourceTags := range listed.ResourceTagList {
		for k, v := range awsutil.TagsToMap(resourceTags.TagsList) {
			current[k] = v
		}
	}

	toSet, toRemove := awsutil.TagDiff(current, req.Params.StringMap("tags"), req.Params.Bool("purge_tags"))
	if len(toSet) == 0 && len(toRemove) == 0 {
		return false, nil
	}
	if req.CheckMode {
		return true, nil
	}

	if len(toSet) > 0 {
		if _, err := api.AddTags(ctx, &cloudtrail.AddTagsInput{
			ResourceId: aws.String(trailARN),
			TagsList:   awsutil.MapToTags[types.Tag](toSet),
		}); err != nil {
			return false, fmt.Errorf("failed to add trail tags: %w", err)
		}
	}
	if len(toRemove) > 0 {
		tags := make([]types.Tag, 0, len(toRemove))
		for _, key := range toRemove {
			tags = append(tags, types.Tag{Key: aws.String(key)})
		}
		if _, err := api.RemoveTags(ctx, &cloudtrail.RemoveTagsInput{
			ResourceId: aws.String(trailARN),
			TagsList:   tags,
		}); err != nil {
			return false, fmt.Errorf("failed to remove trail tags: %w", err)
		}
	}
	return true, nil
}

func resolveAPI(ctx context.Context, api TrailAPI, params module.Params) (TrailAPI, error) {
	if api != nil {
		return api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return cloudtrail.NewFromConfig(cfg), nil
}

func findTrail(ctx context.Context, api TrailAPI, name string) (*types.Trail, error) {
	output, err := api.DescribeTrails(ctx, &cloudtrail.DescribeTrailsInput{
		TrailNameList: []string{name},
	})
	if err != nil {
		if awserr.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to describe trail %s: %w", name, err)
	}
	if len(output.TrailList) == 0 {
		return nil, nil
	}
	return &output.TrailList[0], nil
}

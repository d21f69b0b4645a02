package cloudtrail

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"

	"github.com/stackmill/awsmod/internal/awsutil"
	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

// TrailInfoModule reports trails, their logging status and tags.
type TrailInfoModule struct {
	api TrailAPI
}

func NewTrailInfoModule() *TrailInfoModule { return &TrailInfoModule{} }

func (m *TrailInfoModule) Name() string { return "cloudtrail_info" }

func (m *TrailInfoModule) Summary() string {
	return "Describe CloudTrail trails"
}

func (m *TrailInfoModule) Doc() string {
	return `# cloudtrail_info

Describes trails with their logging status and tags. Never changes anything.

## Parameters

- ` + "`trail_names`" + `: restrict to specific trails (names or ARNs)
- ` + "`include_shadow_trails`" + `: include replicated multi-region trails (default true)

## Returns

` + "`trails`" + `: list of trail dictionaries, each with ` + "`status`" + ` and ` + "`tags`" + `.
`
}

func (m *TrailInfoModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"trail_names":           {Type: module.TypeList},
			"include_shadow_trails": {Type: module.TypeBool, Default: true},
		},
	}, client.CommonParams())
}

func (m *TrailInfoModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := resolveAPI(ctx, m.api, req.Params)
	if err != nil {
		return nil, err
	}

	output, err := api.DescribeTrails(ctx, &cloudtrail.DescribeTrailsInput{
		TrailNameList:       req.Params.StringList("trail_names"),
		IncludeShadowTrails: aws.Bool(req.Params.Bool("include_shadow_trails")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe trails: %w", err)
	}

	trails := make([]map[string]any, 0, len(output.TrailList))
	for _, trail := range output.TrailList {
		dict, err := awsutil.SnakeDict(trail)
		if err != nil {
			return nil, err
		}

		trailARN := aws.ToString(trail.TrailARN)
		status, err := api.GetTrailStatus(ctx, &cloudtrail.GetTrailStatusInput{Name: aws.String(trailARN)})
		if err != nil {
			return nil, fmt.Errorf("failed to get status for trail %s: %w", aws.ToString(trail.Name), err)
		}
		statusDict, err := awsutil.SnakeDict(status)
		if err != nil {
			return nil, err
		}
		delete(statusDict, "result_metadata")
		dict["status"] = statusDict

		listed, err := api.ListTags(ctx, &cloudtrail.ListTagsInput{ResourceIdList: []string{trailARN}})
		if err != nil {
			return nil, fmt.Errorf("failed to list tags for trail %s: %w", aws.ToString(trail.Name), err)
		}
		tags := map[string]string{}
		for _, resourceTags := range listed.ResourceTagList {
			for k, v := range awsutil.TagsToMap(resourceTags.TagsList) {
				tags[k] = v
			}
		}
		dict["tags"] = tags

		trails = append(trails, dict)
	}

	return (&module.Result{}).Set("trails", trails), nil
}

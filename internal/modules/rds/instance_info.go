package rds

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/stackmill/awsmod/internal/awserr"
	"github.com/stackmill/awsmod/internal/awsutil"
	"github.com/stackmill/awsmod/internal/backoff"
	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

// InstanceInfoAPI is the slice of the RDS API the instance info module uses.
type InstanceInfoAPI interface {
	rds.DescribeDBInstancesAPIClient
	ListTagsForResource(ctx context.Context, params *rds.ListTagsForResourceInput, optFns ...func(*rds.Options)) (*rds.ListTagsForResourceOutput, error)
}

// InstanceInfoModule reports RDS DB instances, including their tags.
type InstanceInfoModule struct {
	api InstanceInfoAPI

	// retry covers the per-instance tag reads, which throttle on accounts with
	// many instances. Shrunk in tests.
	retry backoff.Policy
}

func NewInstanceInfoModule() *InstanceInfoModule {
	return &InstanceInfoModule{retry: backoff.Jittered(5, 300*time.Millisecond).WithMaxDelay(5 * time.Second)}
}

func (m *InstanceInfoModule) Name() string { return "rds_instance_info" }

func (m *InstanceInfoModule) Summary() string {
	return "Describe RDS DB instances"
}

func (m *InstanceInfoModule) Doc() string {
	return `# rds_instance_info

Describes DB instances, paginating through the full result set. Tags are fetched per
instance and flattened to a map.

## Parameters

- ` + "`db_instance_identifier`" + `: restrict to one instance
- ` + "`filters`" + `: RDS describe filters, e.g. ` + "`{\"engine\": \"postgres\"}`" + `

## Returns

` + "`instances`" + `: list of DB instance dictionaries.
`
}

func (m *InstanceInfoModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"db_instance_identifier": {Type: module.TypeStr, Aliases: []string{"id"}},
			"filters":                {Type: module.TypeDict},
		},
	}, client.CommonParams())
}

func (m *InstanceInfoModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := m.resolveAPI(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	input := &rds.DescribeDBInstancesInput{
		Filters: buildFilters(req.Params.Dict("filters")),
	}
	if id := req.Params.String("db_instance_identifier"); id != "" {
		input.DBInstanceIdentifier = aws.String(id)
	}

	instances := []map[string]any{}
	paginator := rds.NewDescribeDBInstancesPaginator(api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if awserr.IsNotFound(err) {
				return (&module.Result{}).Set("instances", []map[string]any{}), nil
			}
			return nil, fmt.Errorf("failed to describe DB instances: %w", err)
		}

		for _, instance := range page.DBInstances {
			dict, err := awsutil.SnakeDict(instance)
			if err != nil {
				return nil, err
			}

			var tags *rds.ListTagsForResourceOutput
			err = m.retry.Do(ctx, func() error {
				var err error
				tags, err = api.ListTagsForResource(ctx, &rds.ListTagsForResourceInput{
					ResourceName: instance.DBInstanceArn,
				})
				return err
			})
			if err != nil {
				return nil, fmt.Errorf("failed to list tags for %s: %w",
					aws.ToString(instance.DBInstanceIdentifier), err)
			}
			dict["tags"] = awsutil.TagsToMap(tags.TagList)

			instances = append(instances, dict)
		}
	}

	return (&module.Result{}).Set("instances", instances), nil
}

func (m *InstanceInfoModule) resolveAPI(ctx context.Context, params module.Params) (InstanceInfoAPI, error) {
	if m.api != nil {
		return m.api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return rds.NewFromConfig(cfg), nil
}

func buildFilters(filters map[string]any) []types.Filter {
	if len(filters) == 0 {
		return nil
	}
	out := make([]types.Filter, 0, len(filters))
	for name, value := range filters {
		var values []string
		switch v := value.(type) {
		case []any:
			for _, elem := range v {
				values = append(values, fmt.Sprintf("%v", elem))
			}
		default:
			values = []string{fmt.Sprintf("%v", v)}
		}
		out = append(out, types.Filter{Name: aws.String(name), Values: values})
	}
	return out
}

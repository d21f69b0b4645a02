package elasticache

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	"github.com/aws/aws-sdk-go-v2/service/elasticache/types"

	"github.com/stackmill/awsmod/internal/awserr"
	"github.com/stackmill/awsmod/internal/awsutil"
	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

// ClusterInfoAPI is the slice of the ElastiCache API the cluster info module uses.
type ClusterInfoAPI interface {
	elasticache.DescribeCacheClustersAPIClient
	ListTagsForResource(ctx context.Context, params *elasticache.ListTagsForResourceInput, optFns ...func(*elasticache.Options)) (*elasticache.ListTagsForResourceOutput, error)
}

// ClusterInfoModule reports ElastiCache clusters.
type ClusterInfoModule struct {
	api ClusterInfoAPI
}

func NewClusterInfoModule() *ClusterInfoModule { return &ClusterInfoModule{} }

func (m *ClusterInfoModule) Name() string { return "elasticache_info" }

func (m *ClusterInfoModule) Summary() string {
	return "Describe ElastiCache clusters"
}

func (m *ClusterInfoModule) Doc() string {
	return `# elasticache_info

Describes cache clusters with their member nodes and tags. Never changes anything.

## Parameters

- ` + "`name`" + `: restrict to one cluster id; an unknown id yields an empty list

## Returns

` + "`elasticache_clusters`" + `: list of cluster dictionaries.
`
}

func (m *ClusterInfoModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"name": {Type: module.TypeStr, Aliases: []string{"cluster_id"}},
		},
	}, client.CommonParams())
}

func (m *ClusterInfoModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := m.resolveAPI(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	input := &elasticache.DescribeCacheClustersInput{
		ShowCacheNodeInfo: aws.Bool(true),
	}
	if name := req.Params.String("name"); name != "" {
		input.CacheClusterId = aws.String(name)
	}

	var found []types.CacheCluster
	paginator := elasticache.NewDescribeCacheClustersPaginator(api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if awserr.IsNotFound(err) {
				found = nil
				break
			}
			return nil, fmt.Errorf("failed to describe cache clusters: %w", err)
		}
		found = append(found, page.CacheClusters...)
	}

	clusters := make([]map[string]any, 0, len(found))
	for _, cluster := range found {
		dict, err := awsutil.SnakeDict(cluster)
		if err != nil {
			return nil, err
		}

		if arn := aws.ToString(cluster.ARN); arn != "" {
			listed, err := api.ListTagsForResource(ctx, &elasticache.ListTagsForResourceInput{
				ResourceName: aws.String(arn),
			})
			if err != nil {
				return nil, fmt.Errorf("failed to list tags for %s: %w", aws.ToString(cluster.CacheClusterId), err)
			}
			dict["tags"] = awsutil.TagsToMap(listed.TagList)
		}

		clusters = append(clusters, dict)
	}

	return (&module.Result{}).Set("elasticache_clusters", clusters), nil
}

func (m *ClusterInfoModule) resolveAPI(ctx context.Context, params module.Params) (ClusterInfoAPI, error) {
	if m.api != nil {
		return m.api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return elasticache.NewFromConfig(cfg), nil
}

package elasticache

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	"github.com/aws/aws-sdk-go-v2/service/elasticache/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackmill/awsmod/internal/module"
)

// Mock implementation of ClusterInfoAPI
type mockClusterInfoAPI struct {
	describeCacheClustersFunc func(input *elasticache.DescribeCacheClustersInput) (*elasticache.DescribeCacheClustersOutput, error)
	listTagsFunc              func(input *elasticache.ListTagsForResourceInput) (*elasticache.ListTagsForResourceOutput, error)
}

func (m *mockClusterInfoAPI) DescribeCacheClusters(_ context.Context, input *elasticache.DescribeCacheClustersInput, _ ...func(*elasticache.Options)) (*elasticache.DescribeCacheClustersOutput, error) {
	return m.describeCacheClustersFunc(input)
}

func (m *mockClusterInfoAPI) ListTagsForResource(_ context.Context, input *elasticache.ListTagsForResourceInput, _ ...func(*elasticache.Options)) (*elasticache.ListTagsForResourceOutput, error) {
	return m.listTagsFunc(input)
}

func runClusterInfo(t *testing.T, api ClusterInfoAPI, raw map[string]any) (*module.Result, error) {
	t.Helper()
	m := &ClusterInfoModule{api: api}
	params, err := m.Spec().Validate(raw)
	require.NoError(t, err)
	return m.Run(context.Background(), &module.Request{Params: params})
}

func TestClusterInfoModule_PaginatesWithTags(t *testing.T) {
	calls := 0
	api := &mockClusterInfoAPI{
		describeCacheClustersFunc: func(input *elasticache.DescribeCacheClustersInput) (*elasticache.DescribeCacheClustersOutput, error) {
			calls++
			assert.True(t, aws.ToBool(input.ShowCacheNodeInfo))
			if calls == 1 {
				return &elasticache.DescribeCacheClustersOutput{
					CacheClusters: []types.CacheCluster{{
						CacheClusterId: aws.String("sessions-001"),
						ARN:            aws.String("arn:aws:elasticache:eu-west-1:123456789012:cluster:sessions-001"),
						Engine:         aws.String("redis"),
					}},
					Marker: aws.String("page-2"),
				}, nil
			}
			assert.Equal(t, "page-2", aws.ToString(input.Marker))
			return &elasticache.DescribeCacheClustersOutput{
				CacheClusters: []types.CacheCluster{{
					CacheClusterId: aws.String("sessions-002"),
					ARN:            aws.String("arn:aws:elasticache:eu-west-1:123456789012:cluster:sessions-002"),
					Engine:         aws.String("redis"),
				}},
			}, nil
		},
		listTagsFunc: func(input *elasticache.ListTagsForResourceInput) (*elasticache.ListTagsForResourceOutput, error) {
			return &elasticache.ListTagsForResourceOutput{TagList: []types.Tag{
				{Key: aws.String("env"), Value: aws.String("prod")},
			}}, nil
		},
	}

	result, err := runClusterInfo(t, api, map[string]any{})

	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Equal(t, 2, calls)
	clusters := result.Data["elasticache_clusters"].([]map[string]any)
	require.Len(t, clusters, 2)
	assert.Equal(t, "sessions-001", clusters[0]["cache_cluster_id"])
	assert.Equal(t, "sessions-002", clusters[1]["cache_cluster_id"])
	assert.Equal(t, map[string]string{"env": "prod"}, clusters[0]["tags"])
}

func TestClusterInfoModule_NameIsForwarded(t *testing.T) {
	api := &mockClusterInfoAPI{
		describeCacheClustersFunc: func(input *elasticache.DescribeCacheClustersInput) (*elasticache.DescribeCacheClustersOutput, error) {
			assert.Equal(t, "sessions-001", aws.ToString(input.CacheClusterId))
			return &elasticache.DescribeCacheClustersOutput{}, nil
		},
	}

	result, err := runClusterInfo(t, api, map[string]any{"name": "sessions-001"})

	require.NoError(t, err)
	assert.Empty(t, result.Data["elasticache_clusters"])
}

func TestClusterInfoModule_UnknownClusterIsEmpty(t *testing.T) {
	api := &mockClusterInfoAPI{
		describeCacheClustersFunc: func(input *elasticache.DescribeCacheClustersInput) (*elasticache.DescribeCacheClustersOutput, error) {
			return nil, &smithy.GenericAPIError{Code: "CacheClusterNotFound", Message: "gone"}
		},
	}

	result, err := runClusterInfo(t, api, map[string]any{"name": "ghost"})

	require.NoError(t, err)
	assert.Empty(t, result.Data["elasticache_clusters"])
}

package cloudtrail

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackmill/awsmod/internal/module"
)

// Mock implementation of TrailAPI
type mockTrailAPI struct {
	describeTrailsFunc func(input *cloudtrail.DescribeTrailsInput) (*cloudtrail.DescribeTrailsOutput, error)
	getTrailStatusFunc func(input *cloudtrail.GetTrailStatusInput) (*cloudtrail.GetTrailStatusOutput, error)
	createTrailFunc    func(input *cloudtrail.CreateTrailInput) (*cloudtrail.CreateTrailOutput, error)
	updateTrailFunc    func(input *cloudtrail.UpdateTrailInput) (*cloudtrail.UpdateTrailOutput, error)
	deleteTrailFunc    func(input *cloudtrail.DeleteTrailInput) (*cloudtrail.DeleteTrailOutput, error)
	startLoggingFunc   func(input *cloudtrail.StartLoggingInput) (*cloudtrail.StartLoggingOutput, error)
	stopLoggingFunc    func(input *cloudtrail.StopLoggingInput) (*cloudtrail.StopLoggingOutput, error)
	listTagsFunc       func(input *cloudtrail.ListTagsInput) (*cloudtrail.ListTagsOutput, error)
	addTagsFunc        func(input *cloudtrail.AddTagsInput) (*cloudtrail.AddTagsOutput, error)
	removeTagsFunc     func(input *cloudtrail.RemoveTagsInput) (*cloudtrail.RemoveTagsOutput, error)
}

func (m *mockTrailAPI) DescribeTrails(_ context.Context, input *cloudtrail.DescribeTrailsInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.DescribeTrailsOutput, error) {
	return m.describeTrailsFunc(input)
}

func (m *mockTrailAPI) GetTrailStatus(_ context.Context, input *cloudtrail.GetTrailStatusInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.GetTrailStatusOutput, error) {
	return m.getTrailStatusFunc(input)
}

func (m *mockTrailAPI) CreateTrail(_ context.Context, input *cloudtrail.CreateTrailInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.CreateTrailOutput, error) {
	return m.createTrailFunc(input)
}

func (m *mockTrailAPI) UpdateTrail(_ context.Context, input *cloudtrail.UpdateTrailInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.UpdateTrailOutput, error) {
	return m.updateTrailFunc(input)
}

func (m *mockTrailAPI) DeleteTrail(_ context.Context, input *cloudtrail.DeleteTrailInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.DeleteTrailOutput, error) {
	return m.deleteTrailFunc(input)
}

func (m *mockTrailAPI) StartLogging(_ context.Context, input *cloudtrail.StartLoggingInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.StartLoggingOutput, error) {
	return m.startLoggingFunc(input)
}

func (m *mockTrailAPI) StopLogging(_ context.Context, input *cloudtrail.StopLoggingInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.StopLoggingOutput, error) {
	return m.stopLoggingFunc(input)
}

func (m *mockTrailAPI) ListTags(_ context.Context, input *cloudtrail.ListTagsInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.ListTagsOutput, error) {
	return m.listTagsFunc(input)
}

func (m *mockTrailAPI) AddTags(_ context.Context, input *cloudtrail.AddTagsInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.AddTagsOutput, error) {
	return m.addTagsFunc(input)
}

func (m *mockTrailAPI) RemoveTags(_ context.Context, input *cloudtrail.RemoveTagsInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.RemoveTagsOutput, error) {
	return m.removeTagsFunc(input)
}

func runTrail(t *testing.T, api TrailAPI, raw map[string]any, checkMode bool) (*module.Result, error) {
	t.Helper()
	m := &TrailModule{api: api}
	params, err := m.Spec().Validate(raw)
	require.NoError(t, err)
	return m.Run(context.Background(), &module.Request{Params: params, CheckMode: checkMode})
}

func TestTrailModule_CreatesAndStartsLogging(t *testing.T) {
	created := false
	started := false
	api := &mockTrailAPI{
		describeTrailsFunc: func(input *cloudtrail.DescribeTrailsInput) (*cloudtrail.DescribeTrailsOutput, error) {
			return &cloudtrail.DescribeTrailsOutput{}, nil
		},
		createTrailFunc: func(input *cloudtrail.CreateTrailInput) (*cloudtrail.CreateTrailOutput, error) {
			created = true
			assert.Equal(t, "audit", aws.ToString(input.Name))
			assert.Equal(t, "audit-logs", aws.ToString(input.S3BucketName))
			return &cloudtrail.CreateTrailOutput{
				Name:         input.Name,
				TrailARN:     aws.String("arn:aws:cloudtrail:us-east-1:123456789012:trail/audit"),
				S3BucketName: input.S3BucketName,
			}, nil
		},
		getTrailStatusFunc: func(input *cloudtrail.GetTrailStatusInput) (*cloudtrail.GetTrailStatusOutput, error) {
			return &cloudtrail.GetTrailStatusOutput{IsLogging: aws.Bool(false)}, nil
		},
		startLoggingFunc: func(input *cloudtrail.StartLoggingInput) (*cloudtrail.StartLoggingOutput, error) {
			started = true
			return &cloudtrail.StartLoggingOutput{}, nil
		},
	}

	result, err := runTrail(t, api, map[string]any{
		"name":           "audit",
		"s3_bucket_name": "audit-logs",
	}, false)

	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.True(t, created)
	assert.True(t, started)
	trail := result.Data["trail"].(map[string]any)
	assert.Equal(t, true, trail["is_logging"])
}

func TestTrailModule_CreateRequiresBucket(t *testing.T) {
	api := &mockTrailAPI{
		describeTrailsFunc: func(input *cloudtrail.DescribeTrailsInput) (*cloudtrail.DescribeTrailsOutput, error) {
			return &cloudtrail.DescribeTrailsOutput{}, nil
		},
	}

	_, err := runTrail(t, api, map[string]any{"name": "audit"}, false)
	assert.ErrorContains(t, err, "s3_bucket_name")
}

func TestTrailModule_ReconcilesBucketDrift(t *testing.T) {
	updated := false
	api := &mockTrailAPI{
		describeTrailsFunc: func(input *cloudtrail.DescribeTrailsInput) (*cloudtrail.DescribeTrailsOutput, error) {
			return &cloudtrail.DescribeTrailsOutput{TrailList: []types.Trail{{
				Name:         aws.String("audit"),
				TrailARN:     aws.String("arn:aws:cloudtrail:us-east-1:123456789012:trail/audit"),
				S3BucketName: aws.String("old-bucket"),
			}}}, nil
		},
		updateTrailFunc: func(input *cloudtrail.UpdateTrailInput) (*cloudtrail.UpdateTrailOutput, error) {
			updated = true
			assert.Equal(t, "new-bucket", aws.ToString(input.S3BucketName))
			return &cloudtrail.UpdateTrailOutput{}, nil
		},
		getTrailStatusFunc: func(input *cloudtrail.GetTrailStatusInput) (*cloudtrail.GetTrailStatusOutput, error) {
			return &cloudtrail.GetTrailStatusOutput{IsLogging: aws.Bool(true)}, nil
		},
	}

	result, err := runTrail(t, api, map[string]any{
		"name":           "audit",
		"s3_bucket_name": "new-bucket",
	}, false)

	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.True(t, updated)
}

func TestTrailModule_StableTrailIsIdempotent(t *testing.T) {
	api := &mockTrailAPI{
		describeTrailsFunc: func(input *cloudtrail.DescribeTrailsInput) (*cloudtrail.DescribeTrailsOutput, error) {
			return &cloudtrail.DescribeTrailsOutput{TrailList: []types.Trail{{
				Name:         aws.String("audit"),
				TrailARN:     aws.String("arn:aws:cloudtrail:us-east-1:123456789012:trail/audit"),
				S3BucketName: aws.String("audit-logs"),
			}}}, nil
		},
		getTrailStatusFunc: func(input *cloudtrail.GetTrailStatusInput) (*cloudtrail.GetTrailStatusOutput, error) {
			return &cloudtrail.GetTrailStatusOutput{IsLogging: aws.Bool(true)}, nil
		},
	}

	result, err := runTrail(t, api, map[string]any{
		"name":           "audit",
		"s3_bucket_name": "audit-logs",
	}, false)

	require.NoError(t, err)
	assert.False(t, result.Changed)
}

func TestTrailModule_SyncsTags(t *testing.T) {
	added := false
	removed := false
	api := &mockTrailAPI{
		describeTrailsFunc: func(input *cloudtrail.DescribeTrailsInput) (*cloudtrail.DescribeTrailsOutput, error) {
			return &cloudtrail.DescribeTrailsOutput{TrailList: []types.Trail{{
				Name:         aws.String("audit"),
				TrailARN:     aws.String("arn:aws:cloudtrail:us-east-1:123456789012:trail/audit"),
				S3BucketName: aws.String("audit-logs"),
			}}}, nil
		},
		getTrailStatusFunc: func(input *cloudtrail.GetTrailStatusInput) (*cloudtrail.GetTrailStatusOutput, error) {
			return &cloudtrail.GetTrailStatusOutput{IsLogging: aws.Bool(true)}, nil
		},
		listTagsFunc: func(input *cloudtrail.ListTagsInput) (*cloudtrail.ListTagsOutput, error) {
			return &cloudtrail.ListTagsOutput{ResourceTagList: []types.ResourceTag{{
				ResourceId: aws.String("arn:aws:cloudtrail:us-east-1:123456789012:trail/audit"),
				TagsList: []types.Tag{
					{Key: aws.String("stale"), Value: aws.String("yes")},
				},
			}}}, nil
		},
		addTagsFunc: func(input *cloudtrail.AddTagsInput) (*cloudtrail.AddTagsOutput, error) {
			added = true
			require.Len(t, input.TagsList, 1)
			assert.Equal(t, "env", aws.ToString(input.TagsList[0].Key))
			return &cloudtrail.AddTagsOutput{}, nil
		},
		removeTagsFunc: func(input *cloudtrail.RemoveTagsInput) (*cloudtrail.RemoveTagsOutput, error) {
			removed = true
			require.Len(t, input.TagsList, 1)
			assert.Equal(t, "stale", aws.ToString(input.TagsList[0].Key))
			return &cloudtrail.RemoveTagsOutput{}, nil
		},
	}

	result, err := runTrail(t, api, map[string]any{
		"name":           "audit",
		"s3_bucket_name": "audit-logs",
		"tags":           map[string]any{"env": "prod"},
	}, false)

	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.True(t, added)
	assert.True(t, removed)
}

func TestTrailModule_AbsentDeletes(t *testing.T) {
	deleted := false
	api := &mockTrailAPI{
		describeTrailsFunc: func(input *cloudtrail.DescribeTrailsInput) (*cloudtrail.DescribeTrailsOutput, error) {
			return &cloudtrail.DescribeTrailsOutput{TrailList: []types.Trail{{
				Name:     aws.String("audit"),
				TrailARN: aws.String("arn:aws:cloudtrail:us-east-1:123456789012:trail/audit"),
			}}}, nil
		},
		deleteTrailFunc: func(input *cloudtrail.DeleteTrailInput) (*cloudtrail.DeleteTrailOutput, error) {
			deleted = true
			return &cloudtrail.DeleteTrailOutput{}, nil
		},
	}

	result, err := runTrail(t, api, map[string]any{"name": "audit", "state": "absent"}, false)

	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.True(t, deleted)
}

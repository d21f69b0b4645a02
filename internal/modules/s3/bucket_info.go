package s3

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/stackmill/awsmod/internal/awserr"
	"github.com/stackmill/awsmod/internal/awsutil"
	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

// BucketInfoAPI is the slice of the S3 API the bucket info module uses.
type BucketInfoAPI interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	GetBucketLocation(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
	GetBucketVersioning(ctx context.Context, params *s3.GetBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error)
	GetBucketTagging(ctx context.Context, params *s3.GetBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error)
}

// BucketInfoModule lists buckets, optionally enriching each with location,
// versioning and tagging detail.
type BucketInfoModule struct {
	api BucketInfoAPI
}

func NewBucketInfoModule() *BucketInfoModule { return &BucketInfoModule{} }

func (m *BucketInfoModule) Name() string { return "s3_bucket_info" }

func (m *BucketInfoModule) Summary() string {
	return "List S3 buckets with optional per-bucket detail"
}

func (m *BucketInfoModule) Doc() string {
	return `# s3_bucket_info

Lists buckets. With ` + "`bucket_facts`" + ` enabled, each bucket is enriched with its
location, versioning state and tags. Buckets the caller cannot inspect are reported
with a warning instead of failing the module.

## Parameters

- ` + "`name`" + `: restrict to buckets whose name contains this string
- ` + "`bucket_facts`" + `: fetch per-bucket detail (default false)

## Returns

` + "`buckets`" + `: list of bucket dictionaries.
`
}

func (m *BucketInfoModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"name":         {Type: module.TypeStr},
			"bucket_facts": {Type: module.TypeBool, Default: false},
		},
	}, client.CommonParams())
}

func (m *BucketInfoModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := m.resolveAPI(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	output, err := api.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	result := &module.Result{}
	nameFilter := req.Params.String("name")

	buckets := []map[string]any{}
	for _, bucket := range output.Buckets {
		name := aws.ToString(bucket.Name)
		if nameFilter != "" && !strings.Contains(name, nameFilter) {
			continue
		}

		dict, err := awsutil.SnakeDict(bucket)
		if err != nil {
			return nil, err
		}

		if req.Params.Bool("bucket_facts") {
			if err := m.addBucketFacts(ctx, api, name, dict, result); err != nil {
				return nil, err
			}
		}

		buckets = append(buckets, dict)
	}

	result.Set("buckets", buckets)
	return result, nil
}

func (m *BucketInfoModule) addBucketFacts(ctx context.Context, api BucketInfoAPI, name string, dict map[string]any, result *module.Result) error {
	location, err := api.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: aws.String(name)})
	switch {
	case err == nil:
		region := string(location.LocationConstraint)
		if region == "" {
			region = "us-east-1"
		}
		dict["location"] = region
	case awserr.IsAccessDenied(err):
		result.Warn(fmt.Sprintf("access denied fetching location for bucket %s", name))
	default:
		return fmt.Errorf("failed to get location for bucket %s: %w", name, err)
	}

	versioning, err := api.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{Bucket: aws.String(name)})
	switch {
	case err == nil:
		dict["versioning"] = string(versioning.Status)
	case awserr.IsAccessDenied(err):
		result.Warn(fmt.Sprintf("access denied fetching versioning for bucket %s", name))
	default:
		return fmt.Errorf("failed to get versioning for bucket %s: %w", name, err)
	}

	tagging, err := api.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: aws.String(name)})
	switch {
	case err == nil:
		dict["tags"] = awsutil.TagsToMap(tagging.TagSet)
	case awserr.IsNotFound(err):
		dict["tags"] = map[string]string{}
	case awserr.IsAccessDenied(err):
		result.Warn(fmt.Sprintf("access denied fetching tags for bucket %s", name))
	default:
		return fmt.Errorf("failed to get tags for bucket %s: %w", name, err)
	}

	return nil
}

func (m *BucketInfoModule) resolveAPI(ctx context.Context, params module.Params) (BucketInfoAPI, error) {
	if m.api != nil {
		return m.api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg), nil
}

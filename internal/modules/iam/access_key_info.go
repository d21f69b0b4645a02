package iam

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/stackmill/awsmod/internal/awserr"
	"github.com/stackmill/awsmod/internal/awsutil"
	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

// AccessKeyInfoModule reports the access keys of an IAM user. Secrets are never
// returned; AWS only exposes them at creation time.
type AccessKeyInfoModule struct {
	api AccessKeyAPI
}

func NewAccessKeyInfoModule() *AccessKeyInfoModule { return &AccessKeyInfoModule{} }

func (m *AccessKeyInfoModule) Name() string { return "iam_access_key_info" }

func (m *AccessKeyInfoModule) Summary() string {
	return "List IAM access key metadata for a user"
}

func (m *AccessKeyInfoModule) Doc() string {
	return `# iam_access_key_info

Lists access key metadata for an IAM user. Never changes anything.

## Parameters

- ` + "`user_name`" + `: the IAM user (required)

## Returns

` + "`access_keys`" + `: list of key metadata dictionaries (id, status, create date).
`
}

func (m *AccessKeyInfoModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"user_name": {Type: module.TypeStr, Required: true, Aliases: []string{"username"}},
		},
	}, client.CommonParams())
}

func (m *AccessKeyInfoModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := m.resolveAPI(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	userName := req.Params.String("user_name")
	output, err := api.ListAccessKeys(ctx, &iam.ListAccessKeysInput{UserName: aws.String(userName)})
	if err != nil {
		if awserr.IsNotFound(err) {
			return (&module.Result{}).Set("access_keys", []map[string]any{}), nil
		}
		return nil, fmt.Errorf("failed to list access keys for user %s: %w", userName, err)
	}

	keys, err := awsutil.SnakeDictSlice(output.AccessKeyMetadata)
	if err != nil {
		return nil, err
	}
	return (&module.Result{}).Set("access_keys", keys), nil
}

func (m *AccessKeyInfoModule) resolveAPI(ctx context.Context, params module.Params) (AccessKeyAPI, error) {
	if m.api != nil {
		return m.api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return iam.NewFromConfig(cfg), nil
}

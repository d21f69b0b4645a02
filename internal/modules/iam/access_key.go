package iam

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/stackmill/awsmod/internal/awserr"
	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

// AccessKeyAPI is the slice of the IAM API the access key modules use.
type AccessKeyAPI interface {
	ListAccessKeys(ctx context.Context, params *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error)
	CreateAccessKey(ctx context.Context, params *iam.CreateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.CreateAccessKeyOutput, error)
	UpdateAccessKey(ctx context.Context, params *iam.UpdateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.UpdateAccessKeyOutput, error)
	DeleteAccessKey(ctx context.Context, params *iam.DeleteAccessKeyInput, optFns ...func(*iam.Options)) (*iam.DeleteAccessKeyOutput, error)
}

// AccessKeyModule manages IAM access keys for a user.
type AccessKeyModule struct {
	api AccessKeyAPI
}

func NewAccessKeyModule() *AccessKeyModule { return &AccessKeyModule{} }

func (m *AccessKeyModule) Name() string { return "iam_access_key" }

func (m *AccessKeyModule) Summary() string {
	return "Create, update and delete IAM access keys"
}

func (m *AccessKeyModule) Doc() string {
	return `# iam_access_key

Manages access keys for an IAM user.

## Parameters

- ` + "`user_name`" + `: the IAM user (required)
- ` + "`id`" + `: an existing access key id; required for state=absent and rotate
- ` + "`state`" + `: present or absent (default present)
- ` + "`active`" + `: whether the key should be enabled (default true)
- ` + "`rotate`" + `: create a replacement key and deactivate ` + "`id`" + `

## Returns

On creation and rotation, ` + "`access_key`" + ` including ` + "`secret_access_key`" + `.
The secret is only available at creation time. Rotation also returns
` + "`deactivated_key_id`" + `; the old key is deactivated, not deleted, so it can be
removed with state=absent once nothing uses it anymore.
`
}

func (m *AccessKeyModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"user_name": {Type: module.TypeStr, Required: true, Aliases: []string{"username"}},
			"id":        {Type: module.TypeStr},
			"state":     {Type: module.TypeStr, Default: "present", Choices: []string{"present", "absent"}},
			"active":    {Type: module.TypeBool, Default: true, Aliases: []string{"enabled"}},
			"rotate":    {Type: module.TypeBool, Default: false},
		},
		RequiredIf: []module.RequiredIf{{Key: "state", Value: "absent", Requires: []string{"id"}}},
	}, client.CommonParams())
}

func (m *AccessKeyModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := m.resolveAPI(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	userName := req.Params.String("user_name")
	keyID := req.Params.String("id")

	existing, err := findAccessKey(ctx, api, userName, keyID)
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
		if _, err := api.DeleteAccessKey(ctx, &iam.DeleteAccessKeyInput{
			UserName:    aws.String(userName),
			AccessKeyId: aws.String(keyID),
		}); err != nil {
			return nil, fmt.Errorf("failed to delete access key %s: %w", keyID, err)
		}
		return &module.Result{Changed: true}, nil
	}

	if req.Params.Bool("rotate") {
		return m.rotate(ctx, api, req, userName, keyID, existing)
	}

	desiredStatus := types.StatusTypeActive
	if !req.Params.Bool("active") {
		desiredStatus = types.StatusTypeInactive
	}

	if keyID != "" {
		if existing == nil {
			return nil, fmt.Errorf("access key %s does not exist for user %s", keyID, userName)
		}
		if existing.Status == desiredStatus {
			return &module.Result{}, nil
		}
		if req.CheckMode {
			return &module.Result{Changed: true}, nil
		}
		if _, err := api.UpdateAccessKey(ctx, &iam.UpdateAccessKeyInput{
			UserName:    aws.String(userName),
			AccessKeyId: aws.String(keyID),
			Status:      desiredStatus,
		}); err != nil {
			return nil, fmt.Errorf("failed to update access key %s: %w", keyID, err)
		}
		return &module.Result{Changed: true}, nil
	}

	// No id given: create a new key.
	if req.CheckMode {
		return &module.Result{Changed: true}, nil
	}
	created, err := api.CreateAccessKey(ctx, &iam.CreateAccessKeyInput{UserName: aws.String(userName)})
	if err != nil {
		return nil, fmt.Errorf("failed to create access key for user %s: %w", userName, err)
	}

	result := &module.Result{Changed: true}
	result.Set("access_key", map[string]any{
		"access_key_id":     aws.ToString(created.AccessKey.AccessKeyId),
		"secret_access_key": aws.ToString(created.AccessKey.SecretAccessKey),
		"user_name":         aws.ToString(created.AccessKey.UserName),
		"status":            string(created.AccessKey.Status),
	})

	if desiredStatus == types.StatusTypeInactive {
		if _, err := api.UpdateAccessKey(ctx, &iam.UpdateAccessKeyInput{
			UserName:    aws.String(userName),
			AccessKeyId: created.AccessKey.AccessKeyId,
			Status:      types.StatusTypeInactive,
		}); err != nil {
			return nil, fmt.Errorf("created access key but failed to deactivate it: %w", err)
		}
	}

	return result, nil
}

// rotate creates a replacement key and deactivates the old one. The old key stays
// around in Inactive state so in-flight consumers can be cut over first.
func (m *AccessKeyModule) rotate(ctx context.Context, api AccessKeyAPI, req *module.Request, userName, keyID string, existing *types.AccessKeyMetadata) (*module.Result, error) {
	if keyID == "" {
		return nil, fmt.Errorf("id is required to rotate an access key for user %s", userName)
	}
	if existing == nil {
		return nil, fmt.Errorf("access key %s does not exist for user %s", keyID, userName)
	}
	if req.CheckMode {
		return &module.Result{Changed: true}, nil
	}

	created, err := api.CreateAccessKey(ctx, &iam.CreateAccessKeyInput{UserName: aws.String(userName)})
	if err != nil {
		return nil, fmt.Errorf("failed to create replacement access key for user %s: %w", userName, err)
	}
	if _, err := api.UpdateAccessKey(ctx, &iam.UpdateAccessKeyInput{
		UserName:    aws.String(userName),
		AccessKeyId: aws.String(keyID),
		Status:      types.StatusTypeInactive,
	}); err != nil {
		return nil, fmt.Errorf("created replacement key %s but failed to deactivate %s: %w",
			aws.ToString(created.AccessKey.AccessKeyId), keyID, err)
	}

	result := &module.Result{Changed: true}
	result.Set("access_key", map[string]any{
		"access_key_id":     aws.ToString(created.AccessKey.AccessKeyId),
		"secret_access_key": aws.ToString(created.AccessKey.SecretAccessKey),
		"user_name":         aws.ToString(created.AccessKey.UserName),
		"status":            string(created.AccessKey.Status),
	})
	result.Set("deactivated_key_id", keyID)
	return result, nil
}

func (m *AccessKeyModule) resolveAPI(ctx context.Context, params module.Params) (AccessKeyAPI, error) {
	if m.api != nil {
		return m.api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return iam.NewFromConfig(cfg), nil
}

// findAccessKey returns the key's metadata, or nil when the key or the user itself
// does not exist.
func findAccessKey(ctx context.Context, api AccessKeyAPI, userName, keyID string) (*types.AccessKeyMetadata, error) {
	if keyID == "" {
		return nil, nil
	}

	output, err := api.ListAccessKeys(ctx, &iam.ListAccessKeysInput{UserName: aws.String(userName)})
	if err != nil {
		if awserr.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list access keys for user %s: %w", userName, err)
	}

	for _, key := range output.AccessKeyMetadata {
		if aws.ToString(key.AccessKeyId) == keyID {
			return &key, nil
		}
	}
	return nil, nil
}

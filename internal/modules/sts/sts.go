// Package sts implements the temporary-credential modules. Both return a credentials
// dictionary shaped like the SDK's Credentials type, in snake_case.
package sts

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/aws-sdk-go-v2/service/sts/types"

	"github.com/stackmill/awsmod/internal/awsutil"
	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

type STSAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
	GetSessionToken(ctx context.Context, params *sts.GetSessionTokenInput, optFns ...func(*sts.Options)) (*sts.GetSessionTokenOutput, error)
}

// AssumeRoleModule obtains temporary credentials for a role.
type AssumeRoleModule struct {
	api STSAPI
}

func NewAssumeRoleModule() *AssumeRoleModule { return &AssumeRoleModule{} }

func (m *AssumeRoleModule) Name() string { return "sts_assume_role" }

func (m *AssumeRoleModule) Summary() string {
	return "Assume an IAM role and return temporary credentials"
}

func (m *AssumeRoleModule) Doc() string {
	return `# sts_assume_role

Assumes a role via STS. Every call requests fresh credentials, so the result is
always reported as changed.

## Parameters

- ` + "`role_arn`" + `: the role to assume (required)
- ` + "`role_session_name`" + `: session identifier (required)
- ` + "`duration_seconds`" + `: credential lifetime (default 3600)
- ` + "`external_id`" + `: external id for cross-account trust policies
- ` + "`policy`" + `: inline session policy JSON

## Returns

` + "`sts_creds`" + ` and ` + "`assumed_role_user`" + ` dictionaries.
`
}

func (m *AssumeRoleModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"role_arn":          {Type: module.TypeStr, Required: true},
			"role_session_name": {Type: module.TypeStr, Required: true},
			"duration_seconds":  {Type: module.TypeInt, Default: 3600},
			"external_id":       {Type: module.TypeStr},
			"policy":            {Type: module.TypeStr},
		},
	}, client.CommonParams())
}

func (m *AssumeRoleModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	roleARN := req.Params.String("role_arn")
	if _, err := awsutil.ParseARN(roleARN); err != nil {
		return nil, fmt.Errorf("role_arn %q is not a valid ARN: %w", roleARN, err)
	}

	api, err := resolveAPI(ctx, m.api, req.Params)
	if err != nil {
		return nil, err
	}

	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(req.Params.String("role_session_name")),
		DurationSeconds: aws.Int32(int32(req.Params.Int("duration_seconds"))),
	}
	if v := req.Params.String("external_id"); v != "" {
		input.ExternalId = aws.String(v)
	}
	if v := req.Params.String("policy"); v != "" {
		input.Policy = aws.String(v)
	}

	output, err := api.AssumeRole(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to assume role %s: %w", roleARN, err)
	}

	result := &module.Result{Changed: true}
	result.Set("sts_creds", credentialsDict(output.Credentials))

	user, err := awsutil.SnakeDict(output.AssumedRoleUser)
	if err != nil {
		return nil, err
	}
	result.Set("assumed_role_user", user)
	return result, nil
}

// SessionTokenModule obtains temporary credentials for the calling identity.
type SessionTokenModule struct {
	api STSAPI
}

func NewSessionTokenModule() *SessionTokenModule { return &SessionTokenModule{} }

func (m *SessionTokenModule) Name() string { return "sts_session_token" }

func (m *SessionTokenModule) Summary() string {
	return "Obtain an STS session token for the calling identity"
}

func (m *SessionTokenModule) Doc() string {
	return `# sts_session_token

Requests a session token, optionally MFA-authenticated.

## Parameters

- ` + "`duration_seconds`" + `: credential lifetime (default 43200)
- ` + "`mfa_serial_number`" + ` / ` + "`mfa_token`" + `: MFA device and current code

## Returns

` + "`sts_creds`" + `: the temporary credentials dictionary.
`
}

func (m *SessionTokenModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"duration_seconds":  {Type: module.TypeInt, Default: 43200},
			"mfa_serial_number": {Type: module.TypeStr},
			"mfa_token":         {Type: module.TypeStr},
		},
	}, client.CommonParams())
}

func (m *SessionTokenModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := resolveAPI(ctx, m.api, req.Params)
	if err != nil {
		return nil, err
	}

	input := &sts.GetSessionTokenInput{
		DurationSeconds: aws.Int32(int32(req.Params.Int("duration_seconds"))),
	}
	if v := req.Params.String("mfa_serial_number"); v != "" {
		input.SerialNumber = aws.String(v)
		input.TokenCode = aws.String(req.Params.String("mfa_token"))
	}

	output, err := api.GetSessionToken(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get session token: %w", err)
	}

	result := &module.Result{Changed: true}
	result.Set("sts_creds", credentialsDict(output.Credentials))
	return result, nil
}

func credentialsDict(creds *types.Credentials) map[string]any {
	if creds == nil {
		return nil
	}
	dict := map[string]any{
		"access_key":    aws.ToString(creds.AccessKeyId),
		"secret_key":    aws.ToString(creds.SecretAccessKey),
		"session_token": aws.ToString(creds.SessionToken),
	}
	if creds.Expiration != nil {
		dict["expiration"] = creds.Expiration.UTC().Format("2006-01-02T15:04:05Z")
	}
	return dict
}

func resolveAPI(ctx context.Context, api STSAPI, params module.Params) (STSAPI, error) {
	if api != nil {
		return api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return sts.NewFromConfig(cfg), nil
}

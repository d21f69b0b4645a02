package client

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/spf13/viper"

	"github.com/stackmill/awsmod/internal/module"
)

// CommonParams are the AWS connection parameters shared by every module. Modules
// merge these into their own spec with module.MergeParams.
func CommonParams() map[string]module.Param {
	return map[string]module.Param{
		"region":        {Type: module.TypeStr, Aliases: []string{"aws_region"}},
		"profile":       {Type: module.TypeStr, Aliases: []string{"aws_profile"}},
		"endpoint_url":  {Type: module.TypeStr, Aliases: []string{"aws_endpoint_url"}},
		"access_key":    {Type: module.TypeStr, Aliases: []string{"aws_access_key"}},
		"secret_key":    {Type: module.TypeStr, Aliases: []string{"aws_secret_key"}},
		"session_token": {Type: module.TypeStr, Aliases: []string{"aws_session_token"}},
		"max_attempts":  {Type: module.TypeInt},
	}
}

// LoadConfig builds the SDK config for a module invocation. Parameter values win over
// the awsmod.yaml defaults picked up by viper; anything left unset falls through to
// the SDK's own chain (env, shared config, instance metadata).
func LoadConfig(ctx context.Context, params module.Params) (aws.Config, error) {
	region := firstOf(params.String("region"), viper.GetString("region"))
	profile := firstOf(params.String("profile"), viper.GetString("profile"))
	endpointURL := firstOf(params.String("endpoint_url"), viper.GetString("endpoint_url"))

	maxAttempts := params.Int("max_attempts")
	if maxAttempts == 0 {
		maxAttempts = viper.GetInt("max_attempts")
	}
	if maxAttempts == 0 {
		maxAttempts = 3
	}

	opts := []func(*config.LoadOptions) error{
		// https://docs.aws.amazon.com/sdk-for-go/v2/developer-guide/configure-retries-timeouts.html
		config.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = maxAttempts
				o.MaxBackoff = 20 * time.Second
			})
		}),
	}

	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	if accessKey := params.String("access_key"); accessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				accessKey,
				params.String("secret_key"),
				params.String("session_token"),
			),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if region != "" {
		cfg.Region = region
	}
	if endpointURL != "" {
		cfg.BaseEndpoint = aws.String(endpointURL)
	}

	return cfg, nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

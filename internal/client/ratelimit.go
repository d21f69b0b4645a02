package client

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kafka"
	"golang.org/x/time/rate"

	"github.com/stackmill/awsmod/internal/awserr"
)

// RateLimitedKafkaClient wraps the MSK control-plane client with a client-side rate
// limiter. Accounts with many clusters hit 429s when describe calls are issued
// paginator-fast, so describes wait for a limiter token and retry throttles beyond
// what the SDK retryer allows.
type RateLimitedKafkaClient struct {
	*kafka.Client
	limiter *rate.Limiter
}

func NewRateLimitedKafkaClient(cfg aws.Config, requestsPerSecond float64, burstSize int) *RateLimitedKafkaClient {
	return &RateLimitedKafkaClient{
		Client:  kafka.NewFromConfig(cfg),
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burstSize),
	}
}

func (c *RateLimitedKafkaClient) Wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

func (c *RateLimitedKafkaClient) DescribeClusterV2(ctx context.Context, params *kafka.DescribeClusterV2Input, optFns ...func(*kafka.Options)) (*kafka.DescribeClusterV2Output, error) {
	const maxExtraRetries = 5
	var lastErr error

	for i := 0; i <= maxExtraRetries; i++ {
		if err := c.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter cancelled: %w", err)
		}

		output, err := c.Client.DescribeClusterV2(ctx, params, optFns...)
		if err == nil {
			return output, nil
		}

		lastErr = err
		if !awserr.IsThrottle(err) {
			return nil, err
		}
	}

	return nil, lastErr
}

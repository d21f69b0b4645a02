package msk

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kafka"
	"github.com/aws/aws-sdk-go-v2/service/kafka/types"

	"github.com/stackmill/awsmod/internal/awserr"
	"github.com/stackmill/awsmod/internal/awsutil"
	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

// ClusterInfoAPI is the slice of the MSK API the cluster info module uses.
type ClusterInfoAPI interface {
	kafka.ListClustersV2APIClient
	DescribeClusterV2(ctx context.Context, params *kafka.DescribeClusterV2Input, optFns ...func(*kafka.Options)) (*kafka.DescribeClusterV2Output, error)
	GetBootstrapBrokers(ctx context.Context, params *kafka.GetBootstrapBrokersInput, optFns ...func(*kafka.Options)) (*kafka.GetBootstrapBrokersOutput, error)
}

// ClusterInfoModule reports MSK clusters. Describe calls go through the rate-limited
// client since MSK throttles them aggressively on large accounts.
type ClusterInfoModule struct {
	api ClusterInfoAPI
}

func NewClusterInfoModule() *ClusterInfoModule { return &ClusterInfoModule{} }

func (m *ClusterInfoModule) Name() string { return "msk_cluster_info" }

func (m *ClusterInfoModule) Summary() string {
	return "Describe MSK clusters"
}

func (m *ClusterInfoModule) Doc() string {
	return `# msk_cluster_info

Lists MSK clusters, optionally filtered by name prefix, or describes a single cluster
by ARN. Never changes anything.

## Parameters

- ` + "`name`" + `: cluster name prefix filter
- ` + "`arn`" + `: describe exactly this cluster instead of listing
- ` + "`bootstrap_brokers`" + `: also fetch bootstrap broker strings per cluster

## Returns

` + "`clusters`" + `: list of cluster dictionaries.
`
}

func (m *ClusterInfoModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"name":              {Type: module.TypeStr, Aliases: []string{"cluster_name"}},
			"arn":               {Type: module.TypeStr, Aliases: []string{"cluster_arn"}},
			"bootstrap_brokers": {Type: module.TypeBool, Default: false},
		},
		MutuallyExclusive: [][]string{{"name", "arn"}},
	}, client.CommonParams())
}

func (m *ClusterInfoModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := m.resolveAPI(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	var found []types.Cluster
	if arn := req.Params.String("arn"); arn != "" {
		described, err := api.DescribeClusterV2(ctx, &kafka.DescribeClusterV2Input{
			ClusterArn: aws.String(arn),
		})
		if err != nil {
			if awserr.IsNotFound(err) {
				return (&module.Result{}).Set("clusters", []map[string]any{}), nil
			}
			return nil, fmt.Errorf("failed to describe cluster %s: %w", arn, err)
		}
		found = append(found, *described.ClusterInfo)
	} else {
		input := &kafka.ListClustersV2Input{}
		if name := req.Params.String("name"); name != "" {
			input.ClusterNameFilter = aws.String(name)
		}

		paginator := kafka.NewListClustersV2Paginator(api, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to list clusters: %w", err)
			}
			found = append(found, page.ClusterInfoList...)
		}
	}

	clusters := make([]map[string]any, 0, len(found))
	for _, cluster := range found {
		dict, err := awsutil.SnakeDict(cluster)
		if err != nil {
			return nil, err
		}

		if req.Params.Bool("bootstrap_brokers") {
			brokers, err := api.GetBootstrapBrokers(ctx, &kafka.GetBootstrapBrokersInput{
				ClusterArn: cluster.ClusterArn,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to get bootstrap brokers for %s: %w", aws.ToString(cluster.ClusterName), err)
			}
			dict["bootstrap_brokers"] = bootstrapBrokerDict(brokers)
		}

		clusters = append(clusters, dict)
	}

	return (&module.Result{}).Set("clusters", clusters), nil
}

func bootstrapBrokerDict(brokers *kafka.GetBootstrapBrokersOutput) map[string][]string {
	dict := map[string][]string{}
	add := func(key string, value *string) {
		if v := aws.ToString(value); v != "" {
			dict[key] = strings.Split(v, ",")
		}
	}
	add("plaintext", brokers.BootstrapBrokerString)
	add("tls", brokers.BootstrapBrokerStringTls)
	add("sasl_scram", brokers.BootstrapBrokerStringSaslScram)
	add("sasl_iam", brokers.BootstrapBrokerStringSaslIam)
	add("public_tls", brokers.BootstrapBrokerStringPublicTls)
	add("public_sasl_scram", brokers.BootstrapBrokerStringPublicSaslScram)
	add("public_sasl_iam", brokers.BootstrapBrokerStringPublicSaslIam)
	return dict
}

func (m *ClusterInfoModule) resolveAPI(ctx context.Context, params module.Params) (ClusterInfoAPI, error) {
	if m.api != nil {
		return m.api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return client.NewRateLimitedKafkaClient(cfg, 5, 10), nil
}

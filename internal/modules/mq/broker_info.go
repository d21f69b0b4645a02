package mq

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mq"

	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
)

// BrokerInfoModule reports a single broker by name or id.
type BrokerInfoModule struct {
	api BrokerAPI
}

func NewBrokerInfoModule() *BrokerInfoModule { return &BrokerInfoModule{} }

func (m *BrokerInfoModule) Name() string { return "mq_broker_info" }

func (m *BrokerInfoModule) Summary() string {
	return "Describe an Amazon MQ broker"
}

func (m *BrokerInfoModule) Doc() string {
	return `# mq_broker_info

Describes one broker, looked up by id or by name. Never changes anything.

## Parameters

- ` + "`broker_id`" + `: the broker id
- ` + "`broker_name`" + `: the broker name, resolved via ListBrokers

## Returns

` + "`broker`" + `: the broker dictionary, or null when the name matches nothing.
`
}

func (m *BrokerInfoModule) Spec() module.Spec {
	return module.MergeParams(module.Spec{
		Params: map[string]module.Param{
			"broker_id":   {Type: module.TypeStr},
			"broker_name": {Type: module.TypeStr, Aliases: []string{"name"}},
		},
		MutuallyExclusive: [][]string{{"broker_id", "broker_name"}},
		RequiredOneOf:     [][]string{{"broker_id", "broker_name"}},
	}, client.CommonParams())
}

func (m *BrokerInfoModule) Run(ctx context.Context, req *module.Request) (*module.Result, error) {
	api, err := m.resolveAPI(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	brokerID := req.Params.String("broker_id")
	if brokerID == "" {
		name := req.Params.String("broker_name")
		summary, err := findBroker(ctx, api, name)
		if err != nil {
			return nil, err
		}
		if summary == nil {
			return (&module.Result{}).Set("broker", nil), nil
		}
		brokerID = aws.ToString(summary.BrokerId)
	}

	dict, err := describeBroker(ctx, api, brokerID)
	if err != nil {
		return nil, err
	}
	return (&module.Result{}).Set("broker", dict), nil
}

func (m *BrokerInfoModule) resolveAPI(ctx context.Context, params module.Params) (BrokerAPI, error) {
	if m.api != nil {
		return m.api, nil
	}
	cfg, err := client.LoadConfig(ctx, params)
	if err != nil {
		return nil, err
	}
	return mq.NewFromConfig(cfg), nil
}

package mq

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mq"
	"github.com/aws/aws-sdk-go-v2/service/mq/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackmill/awsmod/internal/module"
)

// Mock implementation of BrokerAPI
type mockBrokerAPI struct {
	listBrokersFunc    func(input *mq.ListBrokersInput) (*mq.ListBrokersOutput, error)
	describeBrokerFunc func(input *mq.DescribeBrokerInput) (*mq.DescribeBrokerOutput, error)
	createBrokerFunc   func(input *mq.CreateBrokerInput) (*mq.CreateBrokerOutput, error)
	updateBrokerFunc   func(input *mq.UpdateBrokerInput) (*mq.UpdateBrokerOutput, error)
	deleteBrokerFunc   func(input *mq.DeleteBrokerInput) (*mq.DeleteBrokerOutput, error)
	rebootBrokerFunc   func(input *mq.RebootBrokerInput) (*mq.RebootBrokerOutput, error)
}

func (m *mockBrokerAPI) ListBrokers(_ context.Context, input *mq.ListBrokersInput, _ ...func(*mq.Options)) (*mq.ListBrokersOutput, error) {
	return m.listBrokersFunc(input)
}

func (m *mockBrokerAPI) DescribeBroker(_ context.Context, input *mq.DescribeBrokerInput, _ ...func(*mq.Options)) (*mq.DescribeBrokerOutput, error) {
	return m.describeBrokerFunc(input)
}

func (m *mockBrokerAPI) CreateBroker(_ context.Context, input *mq.CreateBrokerInput, _ ...func(*mq.Options)) (*mq.CreateBrokerOutput, error) {
	return m.createBrokerFunc(input)
}

func (m *mockBrokerAPI) UpdateBroker(_ context.Context, input *mq.UpdateBrokerInput, _ ...func(*mq.Options)) (*mq.UpdateBrokerOutput, error) {
	return m.updateBrokerFunc(input)
}

func (m *mockBrokerAPI) DeleteBroker(_ context.Context, input *mq.DeleteBrokerInput, _ ...func(*mq.Options)) (*mq.DeleteBrokerOutput, error) {
	return m.deleteBrokerFunc(input)
}

func (m *mockBrokerAPI) RebootBroker(_ context.Context, input *mq.RebootBrokerInput, _ ...func(*mq.Options)) (*mq.RebootBrokerOutput, error) {
	return m.rebootBrokerFunc(input)
}

func runBroker(t *testing.T, api BrokerAPI, raw map[string]any, checkMode bool) (*module.Result, error) {
	t.Helper()
	m := &BrokerModule{api: api}
	params, err := m.Spec().Validate(raw)
	require.NoError(t, err)
	return m.Run(context.Background(), &module.Request{Params: params, CheckMode: checkMode})
}

func existingBrokerList() *mq.ListBrokersOutput {
	return &mq.ListBrokersOutput{BrokerSummaries: []types.BrokerSummary{{
		BrokerId:   aws.String("b-123"),
		BrokerName: aws.String("orders"),
	}}}
}

func TestBrokerModule_CreatesBroker(t *testing.T) {
	created := false
	api := &mockBrokerAPI{
		listBrokersFunc: func(input *mq.ListBrokersInput) (*mq.ListBrokersOutput, error) {
			return &mq.ListBrokersOutput{}, nil
		},
		createBrokerFunc: func(input *mq.CreateBrokerInput) (*mq.CreateBrokerOutput, error) {
			created = true
			assert.Equal(t, "orders", aws.ToString(input.BrokerName))
			assert.Equal(t, types.EngineTypeRabbitmq, input.EngineType)
			require.Len(t, input.Users, 1)
			assert.Equal(t, "admin", aws.ToString(input.Users[0].Username))
			return &mq.CreateBrokerOutput{BrokerId: aws.String("b-123")}, nil
		},
		describeBrokerFunc: func(input *mq.DescribeBrokerInput) (*mq.DescribeBrokerOutput, error) {
			return &mq.DescribeBrokerOutput{
				BrokerId:    aws.String("b-123"),
				BrokerName:  aws.String("orders"),
				BrokerState: types.BrokerStateCreationInProgress,
			}, nil
		},
	}

	result, err := runBroker(t, api, map[string]any{
		"broker_name": "orders",
		"engine_type": "RABBITMQ",
		"username":    "admin",
		"password":    "supersecret1234",
	}, false)

	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.True(t, created)
	broker := result.Data["broker"].(map[string]any)
	assert.Equal(t, "b-123", broker["broker_id"])
}

func TestBrokerModule_CreateRequiresCredentials(t *testing.T) {
	api := &mockBrokerAPI{
		listBrokersFunc: func(input *mq.ListBrokersInput) (*mq.ListBrokersOutput, error) {
			return &mq.ListBrokersOutput{}, nil
		},
	}

	_, err := runBroker(t, api, map[string]any{"broker_name": "orders"}, false)
	assert.ErrorContains(t, err, "username and password")
}

func TestBrokerModule_ExistingIsIdempotent(t *testing.T) {
	api := &mockBrokerAPI{
		listBrokersFunc: func(input *mq.ListBrokersInput) (*mq.ListBrokersOutput, error) {
			return existingBrokerList(), nil
		},
		describeBrokerFunc: func(input *mq.DescribeBrokerInput) (*mq.DescribeBrokerOutput, error) {
			assert.Equal(t, "b-123", aws.ToString(input.BrokerId))
			return &mq.DescribeBrokerOutput{BrokerId: aws.String("b-123")}, nil
		},
	}

	result, err := runBroker(t, api, map[string]any{"broker_name": "orders"}, false)

	require.NoError(t, err)
	assert.False(t, result.Changed)
}

func TestBrokerModule_UpdatesDriftedInstanceType(t *testing.T) {
	updated := false
	describeCalls := 0
	api := &mockBrokerAPI{
		listBrokersFunc: func(input *mq.ListBrokersInput) (*mq.ListBrokersOutput, error) {
			return existingBrokerList(), nil
		},
		describeBrokerFunc: func(input *mq.DescribeBrokerInput) (*mq.DescribeBrokerOutput, error) {
			describeCalls++
			instanceType := "mq.t3.micro"
			if updated {
				instanceType = "mq.m5.large"
			}
			return &mq.DescribeBrokerOutput{
				BrokerId:         aws.String("b-123"),
				HostInstanceType: aws.String(instanceType),
				EngineVersion:    aws.String("5.17.6"),
			}, nil
		},
		updateBrokerFunc: func(input *mq.UpdateBrokerInput) (*mq.UpdateBrokerOutput, error) {
			updated = true
			assert.Equal(t, "b-123", aws.ToString(input.BrokerId))
			assert.Equal(t, "mq.m5.large", aws.ToString(input.HostInstanceType))
			assert.Nil(t, input.EngineVersion)
			return &mq.UpdateBrokerOutput{}, nil
		},
	}

	result, err := runBroker(t, api, map[string]any{
		"broker_name":        "orders",
		"host_instance_type": "mq.m5.large",
	}, false)

	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.True(t, updated)
	assert.Equal(t, 2, describeCalls)
	broker := result.Data["broker"].(map[string]any)
	assert.Equal(t, "mq.m5.large", broker["host_instance_type"])
}

func TestBrokerModule_UpdatesDriftedSecurityGroups(t *testing.T) {
	updated := false
	api := &mockBrokerAPI{
		listBrokersFunc: func(input *mq.ListBrokersInput) (*mq.ListBrokersOutput, error) {
			return existingBrokerList(), nil
		},
		describeBrokerFunc: func(input *mq.DescribeBrokerInput) (*mq.DescribeBrokerOutput, error) {
			return &mq.DescribeBrokerOutput{
				BrokerId:       aws.String("b-123"),
				SecurityGroups: []string{"sg-old"},
			}, nil
		},
		updateBrokerFunc: func(input *mq.UpdateBrokerInput) (*mq.UpdateBrokerOutput, error) {
			updated = true
			assert.Equal(t, []string{"sg-new"}, input.SecurityGroups)
			return &mq.UpdateBrokerOutput{}, nil
		},
	}

	result, err := runBroker(t, api, map[string]any{
		"broker_name":     "orders",
		"security_groups": []any{"sg-new"},
	}, false)

	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.True(t, updated)
}

func TestBrokerModule_MatchingSettingsSkipUpdate(t *testing.T) {
	api := &mockBrokerAPI{
		listBrokersFunc: func(input *mq.ListBrokersInput) (*mq.ListBrokersOutput, error) {
			return existingBrokerList(), nil
		},
		describeBrokerFunc: func(input *mq.DescribeBrokerInput) (*mq.DescribeBrokerOutput, error) {
			return &mq.DescribeBrokerOutput{
				BrokerId:         aws.String("b-123"),
				HostInstanceType: aws.String("mq.m5.large"),
				EngineVersion:    aws.String("5.17.6"),
				SecurityGroups:   []string{"sg-b", "sg-a"},
			}, nil
		},
		updateBrokerFunc: func(input *mq.UpdateBrokerInput) (*mq.UpdateBrokerOutput, error) {
			t.Fatal("matching settings must not update the broker")
			return nil, nil
		},
	}

	result, err := runBroker(t, api, map[string]any{
		"broker_name":        "orders",
		"host_instance_type": "mq.m5.large",
		"engine_version":     "5.17.6",
		"security_groups":    []any{"sg-a", "sg-b"},
	}, false)

	require.NoError(t, err)
	assert.False(t, result.Changed)
}

func TestBrokerModule_DriftInCheckModeOnlyReports(t *testing.T) {
	api := &mockBrokerAPI{
		listBrokersFunc: func(input *mq.ListBrokersInput) (*mq.ListBrokersOutput, error) {
			return existingBrokerList(), nil
		},
		describeBrokerFunc: func(input *mq.DescribeBrokerInput) (*mq.DescribeBrokerOutput, error) {
			return &mq.DescribeBrokerOutput{
				BrokerId:         aws.String("b-123"),
				HostInstanceType: aws.String("mq.t3.micro"),
			}, nil
		},
		updateBrokerFunc: func(input *mq.UpdateBrokerInput) (*mq.UpdateBrokerOutput, error) {
			t.Fatal("check mode must not update the broker")
			return nil, nil
		},
	}

	result, err := runBroker(t, api, map[string]any{
		"broker_name":        "orders",
		"host_instance_type": "mq.m5.large",
	}, true)

	require.NoError(t, err)
	assert.True(t, result.Changed)
}

func TestBrokerModule_RestartReboots(t *testing.T) {
	rebooted := false
	api := &mockBrokerAPI{
		listBrokersFunc: func(input *mq.ListBrokersInput) (*mq.ListBrokersOutput, error) {
			return existingBrokerList(), nil
		},
		rebootBrokerFunc: func(input *mq.RebootBrokerInput) (*mq.RebootBrokerOutput, error) {
			rebooted = true
			return &mq.RebootBrokerOutput{}, nil
		},
		describeBrokerFunc: func(input *mq.DescribeBrokerInput) (*mq.DescribeBrokerOutput, error) {
			return &mq.DescribeBrokerOutput{
				BrokerId:    aws.String("b-123"),
				BrokerState: types.BrokerStateRebootInProgress,
			}, nil
		},
	}

	result, err := runBroker(t, api, map[string]any{"broker_name": "orders", "state": "restarted"}, false)

	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.True(t, rebooted)
}

func TestBrokerModule_AbsentDeletes(t *testing.T) {
	deleted := false
	api := &mockBrokerAPI{
		listBrokersFunc: func(input *mq.ListBrokersInput) (*mq.ListBrokersOutput, error) {
			return existingBrokerList(), nil
		},
		deleteBrokerFunc: func(input *mq.DeleteBrokerInput) (*mq.DeleteBrokerOutput, error) {
			deleted = true
			assert.Equal(t, "b-123", aws.ToString(input.BrokerId))
			return &mq.DeleteBrokerOutput{}, nil
		},
	}

	result, err := runBroker(t, api, map[string]any{"broker_name": "orders", "state": "absent"}, false)

	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.True(t, deleted)
}

func TestBrokerInfoModule_LooksUpByName(t *testing.T) {
	api := &mockBrokerAPI{
		listBrokersFunc: func(input *mq.ListBrokersInput) (*mq.ListBrokersOutput, error) {
			return existingBrokerList(), nil
		},
		describeBrokerFunc: func(input *mq.DescribeBrokerInput) (*mq.DescribeBrokerOutput, error) {
			return &mq.DescribeBrokerOutput{BrokerId: aws.String("b-123")}, nil
		},
	}

	m := &BrokerInfoModule{api: api}
	params, err := m.Spec().Validate(map[string]any{"broker_name": "orders"})
	require.NoError(t, err)

	result, err := m.Run(context.Background(), &module.Request{Params: params})

	require.NoError(t, err)
	assert.False(t, result.Changed)
	broker := result.Data["broker"].(map[string]any)
	assert.Equal(t, "b-123", broker["broker_id"])
}

func TestBrokerInfoModule_UnknownNameIsNull(t *testing.T) {
	api := &mockBrokerAPI{
		listBrokersFunc: func(input *mq.ListBrokersInput) (*mq.ListBrokersOutput, error) {
			return &mq.ListBrokersOutput{}, nil
		},
	}

	m := &BrokerInfoModule{api: api}
	params, err := m.Spec().Validate(map[string]any{"broker_name": "ghost"})
	require.NoError(t, err)

	result, err := m.Run(context.Background(), &module.Request{Params: params})

	require.NoError(t, err)
	assert.Nil(t, result.Data["broker"])
}

package session

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackmill/awsmod/internal/backoff"
	"github.com/stackmill/awsmod/internal/mocks"
)

func testSession(api *mocks.MockSSMAPI) *Session {
	s := New(api, "i-abc123")
	s.policy = backoff.Exponential(2, time.Millisecond)
	s.pollInterval = time.Millisecond
	return s
}

func onlineInstance() *ssm.DescribeInstanceInformationOutput {
	return &ssm.DescribeInstanceInformationOutput{
		InstanceInformationList: []types.InstanceInformation{{
			InstanceId: aws.String("i-abc123"),
			PingStatus: types.PingStatusOnline,
		}},
	}
}

func TestSession_ConnectMovesToActive(t *testing.T) {
	api := &mocks.MockSSMAPI{
		DescribeInstanceInformationFunc: func(input *ssm.DescribeInstanceInformationInput) (*ssm.DescribeInstanceInformationOutput, error) {
			return onlineInstance(), nil
		},
	}
	s := testSession(api)

	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, StateActive, s.CurrentState)
}

func TestSession_ConnectRejectsOfflineAgent(t *testing.T) {
	api := &mocks.MockSSMAPI{
		DescribeInstanceInformationFunc: func(input *ssm.DescribeInstanceInformationInput) (*ssm.DescribeInstanceInformationOutput, error) {
			return &ssm.DescribeInstanceInformationOutput{
				InstanceInformationList: []types.InstanceInformation{{
					InstanceId: aws.String("i-abc123"),
					PingStatus: types.PingStatusConnectionLost,
				}},
			}, nil
		},
	}
	s := testSession(api)

	err := s.Connect(context.Background())
	assert.ErrorContains(t, err, "not online")
	assert.Equal(t, StatePending, s.CurrentState)
}

func TestSession_ConnectRejectsUnregisteredInstance(t *testing.T) {
	api := &mocks.MockSSMAPI{
		DescribeInstanceInformationFunc: func(input *ssm.DescribeInstanceInformationInput) (*ssm.DescribeInstanceInformationOutput, error) {
			return &ssm.DescribeInstanceInformationOutput{}, nil
		},
	}
	s := testSession(api)

	err := s.Connect(context.Background())
	assert.ErrorContains(t, err, "not registered")
}

func TestSession_ExecBeforeConnectFails(t *testing.T) {
	s := testSession(&mocks.MockSSMAPI{})

	_, err := s.Exec(context.Background(), "uptime")
	assert.ErrorContains(t, err, "not active")
}

func TestSession_ExecPollsToTerminalStatus(t *testing.T) {
	polls := 0
	api := &mocks.MockSSMAPI{
		DescribeInstanceInformationFunc: func(input *ssm.DescribeInstanceInformationInput) (*ssm.DescribeInstanceInformationOutput, error) {
			return onlineInstance(), nil
		},
		SendCommandFunc: func(input *ssm.SendCommandInput) (*ssm.SendCommandOutput, error) {
			assert.Equal(t, "AWS-RunShellScript", aws.ToString(input.DocumentName))
			assert.Equal(t, []string{"uptime"}, input.Parameters["commands"])
			return &ssm.SendCommandOutput{Command: &types.Command{CommandId: aws.String("cmd-1")}}, nil
		},
		GetCommandInvocationFunc: func(input *ssm.GetCommandInvocationInput) (*ssm.GetCommandInvocationOutput, error) {
			polls++
			if polls < 3 {
				return &ssm.GetCommandInvocationOutput{Status: types.CommandInvocationStatusInProgress}, nil
			}
			return &ssm.GetCommandInvocationOutput{
				Status:                types.CommandInvocationStatusSuccess,
				ResponseCode:          0,
				StandardOutputContent: aws.String("up 3 days\n"),
			}, nil
		},
	}
	s := testSession(api)
	require.NoError(t, s.Connect(context.Background()))

	result, err := s.Exec(context.Background(), "uptime")

	require.NoError(t, err)
	assert.Equal(t, "cmd-1", result.CommandID)
	assert.False(t, result.Failed())
	assert.Equal(t, "up 3 days\n", result.Stdout)
	assert.Equal(t, 3, polls)
}

func TestSession_ExecRetriesThrottledSend(t *testing.T) {
	sends := 0
	api := &mocks.MockSSMAPI{
		DescribeInstanceInformationFunc: func(input *ssm.DescribeInstanceInformationInput) (*ssm.DescribeInstanceInformationOutput, error) {
			return onlineInstance(), nil
		},
		SendCommandFunc: func(input *ssm.SendCommandInput) (*ssm.SendCommandOutput, error) {
			sends++
			if sends == 1 {
				return nil, &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}
			}
			return &ssm.SendCommandOutput{Command: &types.Command{CommandId: aws.String("cmd-1")}}, nil
		},
		GetCommandInvocationFunc: func(input *ssm.GetCommandInvocationInput) (*ssm.GetCommandInvocationOutput, error) {
			return &ssm.GetCommandInvocationOutput{Status: types.CommandInvocationStatusSuccess}, nil
		},
	}
	s := testSession(api)
	require.NoError(t, s.Connect(context.Background()))

	result, err := s.Exec(context.Background(), "uptime")

	require.NoError(t, err)
	assert.Equal(t, 2, sends)
	assert.False(t, result.Failed())
}

func TestSession_ExecReportsFailedCommand(t *testing.T) {
	api := &mocks.MockSSMAPI{
		DescribeInstanceInformationFunc: func(input *ssm.DescribeInstanceInformationInput) (*ssm.DescribeInstanceInformationOutput, error) {
			return onlineInstance(), nil
		},
		SendCommandFunc: func(input *ssm.SendCommandInput) (*ssm.SendCommandOutput, error) {
			return &ssm.SendCommandOutput{Command: &types.Command{CommandId: aws.String("cmd-1")}}, nil
		},
		GetCommandInvocationFunc: func(input *ssm.GetCommandInvocationInput) (*ssm.GetCommandInvocationOutput, error) {
			return &ssm.GetCommandInvocationOutput{
				Status:               types.CommandInvocationStatusFailed,
				ResponseCode:         127,
				StandardErrorContent: aws.String("command not found"),
			}, nil
		},
	}
	s := testSession(api)
	require.NoError(t, s.Connect(context.Background()))

	result, err := s.Exec(context.Background(), "nope")

	require.NoError(t, err)
	assert.True(t, result.Failed())
	assert.Equal(t, 127, result.ExitCode)
	assert.Equal(t, "command not found", result.Stderr)
}

func TestSession_CloseIsTerminal(t *testing.T) {
	api := &mocks.MockSSMAPI{
		DescribeInstanceInformationFunc: func(input *ssm.DescribeInstanceInformationInput) (*ssm.DescribeInstanceInformationOutput, error) {
			return onlineInstance(), nil
		},
	}
	s := testSession(api)
	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, StateClosed, s.CurrentState)

	_, err := s.Exec(context.Background(), "uptime")
	assert.ErrorContains(t, err, "not active")

	assert.Error(t, s.Close(context.Background()))
}

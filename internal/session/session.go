// Package session runs shell commands on SSM-managed instances and moves files to
// and from them through an S3 staging bucket.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/looplab/fsm"

	"github.com/stackmill/awsmod/internal/backoff"
)

const (
	StatePending = "pending"
	StateActive  = "active"
	StateClosed  = "closed"

	EventConnect = "connect"
	EventClose   = "close"
)

// SSM documents used for command execution. Shell script is the default; Windows
// targets take the PowerShell document via WithDocument.
const (
	DocumentRunShellScript      = "AWS-RunShellScript"
	DocumentRunPowerShellScript = "AWS-RunPowerShellScript"
)

// SSMAPI is the slice of the SSM API a session uses.
type SSMAPI interface {
	DescribeInstanceInformation(ctx context.Context, params *ssm.DescribeInstanceInformationInput, optFns ...func(*ssm.Options)) (*ssm.DescribeInstanceInformationOutput, error)
	SendCommand(ctx context.Context, params *ssm.SendCommandInput, optFns ...func(*ssm.Options)) (*ssm.SendCommandOutput, error)
	GetCommandInvocation(ctx context.Context, params *ssm.GetCommandInvocationInput, optFns ...func(*ssm.Options)) (*ssm.GetCommandInvocationOutput, error)
}

// CommandResult is the outcome of one remote command.
type CommandResult struct {
	CommandID string
	Status    string
	ExitCode  int
	Stdout    string
	Stderr    string
}

func (r *CommandResult) Failed() bool {
	return r.Status != string(types.CommandInvocationStatusSuccess)
}

// Session drives commands on one managed instance. The lifecycle runs through a
// state machine so commands cannot be sent before the target is verified online or
// after the session is closed.
type Session struct {
	InstanceID   string
	CurrentState string

	api      SSMAPI
	machine  *fsm.FSM
	policy   backoff.Policy
	document string

	// pollInterval is shortened in tests.
	pollInterval time.Duration
	execTimeout  time.Duration
}

func New(api SSMAPI, instanceID string) *Session {
	s := &Session{
		InstanceID:   instanceID,
		CurrentState: StatePending,
		api:          api,
		policy:       backoff.Jittered(5, 500*time.Millisecond).WithMaxDelay(10 * time.Second),
		document:     DocumentRunShellScript,
		pollInterval: 2 * time.Second,
		execTimeout:  10 * time.Minute,
	}
	s.initializeFSM()
	return s
}

// WithDocument switches the SSM document commands run under.
func (s *Session) WithDocument(document string) *Session {
	s.document = document
	return s
}

func (s *Session) initializeFSM() {
	s.machine = fsm.NewFSM(
		StatePending,
		fsm.Events{
			{Name: EventConnect, Src: []string{StatePending}, Dst: StateActive},
			{Name: EventClose, Src: []string{StatePending, StateActive}, Dst: StateClosed},
		},
		fsm.Callbacks{
			"leave_" + StatePending: func(ctx context.Context, e *fsm.Event) {
				if e.Event == EventConnect {
					s.verifyTarget(ctx, e)
				}
			},
			"after_event": func(_ context.Context, e *fsm.Event) {
				s.CurrentState = s.machine.Current()
			},
		},
	)
}

// Connect verifies the instance is registered with SSM and online, then moves the
// session to active.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.machine.Event(ctx, EventConnect); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", s.InstanceID, err)
	}
	slog.Info("session established", "instance", s.InstanceID)
	return nil
}

// Close ends the session. Closing twice is an error surfaced by the state machine.
func (s *Session) Close(ctx context.Context) error {
	if err := s.machine.Event(ctx, EventClose); err != nil {
		return fmt.Errorf("failed to close session on %s: %w", s.InstanceID, err)
	}
	return nil
}

func (s *Session) verifyTarget(ctx context.Context, e *fsm.Event) {
	output, err := s.api.DescribeInstanceInformation(ctx, &ssm.DescribeInstanceInformationInput{
		Filters: []types.InstanceInformationStringFilter{
			{Key: aws.String("InstanceIds"), Values: []string{s.InstanceID}},
		},
	})
	if err != nil {
		e.Cancel(fmt.Errorf("failed to describe instance information: %w", err))
		return
	}
	if len(output.InstanceInformationList) == 0 {
		e.Cancel(fmt.Errorf("instance %s is not registered with SSM", s.InstanceID))
		return
	}
	if status := output.InstanceInformationList[0].PingStatus; status != types.PingStatusOnline {
		e.Cancel(fmt.Errorf("instance %s agent is %s, not online", s.InstanceID, status))
	}
}

// Exec runs one shell command on the instance and waits for its terminal status.
// SendCommand throttles readily with concurrent callers, so it goes through the
// backoff policy.
func (s *Session) Exec(ctx context.Context, command string) (*CommandResult, error) {
	if !s.machine.Is(StateActive) {
		return nil, fmt.Errorf("session on %s is %s, not active", s.InstanceID, s.machine.Current())
	}

	var sent *ssm.SendCommandOutput
	err := s.policy.Do(ctx, func() error {
		var err error
		sent, err = s.api.SendCommand(ctx, &ssm.SendCommandInput{
			DocumentName:   aws.String(s.document),
			InstanceIds:    []string{s.InstanceID},
			Parameters:     map[string][]string{"commands": {command}},
			TimeoutSeconds: aws.Int32(int32(s.execTimeout.Seconds())),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send command to %s: %w", s.InstanceID, err)
	}

	commandID := aws.ToString(sent.Command.CommandId)
	slog.Debug("command sent", "instance", s.InstanceID, "command_id", commandID)
	return s.waitForInvocation(ctx, commandID)
}

// waitForInvocation polls GetCommandInvocation until the invocation leaves the
// pending, in-progress and delayed states.
func (s *Session) waitForInvocation(ctx context.Context, commandID string) (*CommandResult, error) {
	deadline := time.Now().Add(s.execTimeout)
	for {
		var output *ssm.GetCommandInvocationOutput
		err := s.policy.Do(ctx, func() error {
			var err error
			output, err = s.api.GetCommandInvocation(ctx, &ssm.GetCommandInvocationInput{
				CommandId:  aws.String(commandID),
				InstanceId: aws.String(s.InstanceID),
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get invocation %s: %w", commandID, err)
		}

		switch output.Status {
		case types.CommandInvocationStatusPending,
			types.CommandInvocationStatusInProgress,
			types.CommandInvocationStatusDelayed:
		default:
			return &CommandResult{
				CommandID: commandID,
				Status:    string(output.Status),
				ExitCode:  int(output.ResponseCode),
				Stdout:    aws.ToString(output.StandardOutputContent),
				Stderr:    aws.ToString(output.StandardErrorContent),
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for invocation %s on %s", commandID, s.InstanceID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}

package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"

	"github.com/stackmill/awsmod/internal/client"
	"github.com/stackmill/awsmod/internal/module"
	"github.com/stackmill/awsmod/internal/session"
	"github.com/stackmill/awsmod/internal/utils"
)

var (
	instanceID string
	region     string
	profile    string
	bucket     string
	prefix     string
)

func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Run commands and transfer files over SSM",
		Long:  `Runs shell commands and transfers files on EC2 instances through AWS Systems Manager, without SSH.`,
	}

	cmd.PersistentFlags().StringVarP(&instanceID, "instance-id", "i", "", "Target EC2 instance ID")
	cmd.PersistentFlags().StringVar(&region, "region", "", "AWS region")
	cmd.PersistentFlags().StringVar(&profile, "profile", "", "AWS shared config profile")
	cmd.MarkPersistentFlagRequired("instance-id")

	cmd.AddCommand(
		newRunCmd(),
		newPushCmd(),
		newPullCmd(),
	)

	return cmd
}

func newRunCmd() *cobra.Command {
	var powershell bool

	cmd := &cobra.Command{
		Use:           "run <command>",
		Short:         "Run a shell command on the instance",
		Example:       `awsmod session run --instance-id i-0abc123 'systemctl status nginx'`,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		PreRunE:       bindEnv,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, closeSession, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer closeSession()

			if powershell {
				s.WithDocument(session.DocumentRunPowerShellScript)
			}

			result, err := s.Exec(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Print(result.Stdout)
			if result.Stderr != "" {
				fmt.Fprint(os.Stderr, result.Stderr)
			}
			if result.Failed() {
				return fmt.Errorf("command exited with status %d", result.ExitCode)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&powershell, "powershell", false, "Run the command with AWS-RunPowerShellScript (Windows targets)")

	return cmd
}

func newPushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "push <local> <remote>",
		Short:         "Copy a local file to the instance",
		Example:       `awsmod session push --instance-id i-0abc123 --bucket staging ./app.conf /etc/app/app.conf`,
		Args:          cobra.ExactArgs(2),
		SilenceErrors: true,
		SilenceUsage:  true,
		PreRunE:       bindEnv,
		RunE: func(cmd *cobra.Command, args []string) error {
			return transfer(cmd.Context(), func(ctx context.Context, tr *session.Transfer) error {
				if err := tr.Push(ctx, args[0], args[1]); err != nil {
					return err
				}
				slog.Info("file pushed", "local", args[0], "remote", args[1], "instance", instanceID)
				return nil
			})
		},
	}

	addTransferFlags(cmd)
	return cmd
}

func newPullCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pull <remote> <local>",
		Short:         "Copy a file from the instance",
		Example:       `awsmod session pull --instance-id i-0abc123 --bucket staging /var/log/app.log ./app.log`,
		Args:          cobra.ExactArgs(2),
		SilenceErrors: true,
		SilenceUsage:  true,
		PreRunE:       bindEnv,
		RunE: func(cmd *cobra.Command, args []string) error {
			return transfer(cmd.Context(), func(ctx context.Context, tr *session.Transfer) error {
				if err := tr.Pull(ctx, args[0], args[1]); err != nil {
					return err
				}
				slog.Info("file pulled", "remote", args[0], "local", args[1], "instance", instanceID)
				return nil
			})
		},
	}

	addTransferFlags(cmd)
	return cmd
}

func addTransferFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&bucket, "bucket", "", "S3 bucket used to stage the file")
	cmd.Flags().StringVar(&prefix, "prefix", "awsmod-transfers", "Key prefix for staged objects")
	cmd.MarkFlagRequired("bucket")
}

func bindEnv(cmd *cobra.Command, args []string) error {
	return utils.BindEnvToFlags(cmd)
}

// openSession connects to the instance and returns a close func the caller defers.
func openSession(ctx context.Context) (*session.Session, aws.Config, func(), error) {
	cfg, err := client.LoadConfig(ctx, module.Params{
		"region":  region,
		"profile": profile,
	})
	if err != nil {
		return nil, aws.Config{}, nil, err
	}

	s := session.New(ssm.NewFromConfig(cfg), instanceID)
	if err := s.Connect(ctx); err != nil {
		return nil, aws.Config{}, nil, fmt.Errorf("failed to open session on %s: %w", instanceID, err)
	}

	return s, cfg, func() {
		if err := s.Close(ctx); err != nil {
			slog.Warn("failed to close session", "instance", instanceID, "error", err)
		}
	}, nil
}

func transfer(ctx context.Context, fn func(context.Context, *session.Transfer) error) error {
	s, cfg, closeSession, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer closeSession()

	tr := session.NewTransfer(s, s3.NewFromConfig(cfg), bucket, prefix)
	return fn(ctx, tr)
}

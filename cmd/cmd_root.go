package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/stackmill/awsmod/cmd/doc"
	"github.com/stackmill/awsmod/cmd/list"
	"github.com/stackmill/awsmod/cmd/run"
	"github.com/stackmill/awsmod/cmd/serve"
	"github.com/stackmill/awsmod/cmd/session"
	"github.com/stackmill/awsmod/cmd/update"
	"github.com/stackmill/awsmod/cmd/version"
	"github.com/stackmill/awsmod/internal/build_info"
)

var RootCmd = &cobra.Command{
	Use:   "awsmod",
	Short: "A CLI tool for declarative AWS resource management",
	Long:  "A CLI tool for running declarative, idempotent modules against AWS services. Docs: " + getDocURL(),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if build_info.Version == build_info.DefaultDevVersion {
			fmt.Fprintf(os.Stderr, "\n%s\n%s\n%s\n%s\n\n",
				color.RedString("┌─────────────────────────────────────────────────────────────────────────┐"),
				color.RedString("│ ⚠️  WARNING: This is a development build                                │"),
				color.RedString("│ Official releases: https://github.com/stackmill/awsmod/releases         │"),
				color.RedString("└─────────────────────────────────────────────────────────────────────────┘"))
		}

		fmt.Fprintf(os.Stderr, "%s %s %s %s\n",
			color.CyanString("Executing awsmod with build"),
			color.GreenString("version=%s", build_info.Version),
			color.YellowString("commit=%s", build_info.Commit),
			color.BlueString("date=%s", build_info.Date))

		if err := checkWritePermissions(); err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", color.RedString("Error: %v", err))
			os.Exit(1)
		}
	},
}

func init() {
	cobra.EnableTraverseRunHooks = true

	lumberjackLogger := &lumberjack.Logger{
		Filename: "awsmod.log",
		MaxSize:  25,
		Compress: true,
	}
	opts := PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}
	// Module results go to stdout as JSON, so diagnostics stay on stderr.
	handler := NewPrettyHandler(io.MultiWriter(lumberjackLogger, os.Stderr), opts)
	logger := slog.New(handler)

	slog.SetDefault(logger)

	initConfig()

	RootCmd.AddCommand(
		run.NewRunCmd(),
		list.NewListCmd(),
		doc.NewDocCmd(),
		serve.NewServeCmd(),
		session.NewSessionCmd(),
		version.NewVersionCmd(),
		update.NewUpdateCmd(),
	)
}

// initConfig wires optional awsmod.yaml defaults and AWSMOD_* environment variables
// into viper. Connection parameters passed to a module always win over these.
func initConfig() {
	viper.SetConfigName("awsmod")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
	}
	viper.SetEnvPrefix("AWSMOD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "%s\n", color.RedString("Error reading config file: %v", err))
		}
	}
}

type PrettyHandlerOptions struct {
	SlogOpts slog.HandlerOptions
}

type PrettyHandler struct {
	slog.Handler
	l *log.Logger
}

func getDocURL() string {
	if build_info.Version == build_info.DefaultDevVersion {
		return "https://github.com/stackmill/awsmod/tree/latest/docs"
	}
	return "https://github.com/stackmill/awsmod/tree/v" + build_info.Version + "/docs"
}

func (h *PrettyHandler) Handle(ctx context.Context, r slog.Record) error {
	time := r.Time.Format("2006/01/02 15:04:05")
	level := r.Level.String()
	message := r.Message

	values := []string{}
	r.Attrs(func(a slog.Attr) bool {
		values = append(values, fmt.Sprintf("%s=%v", a.Key, a.Value.Any()))
		return true
	})

	h.l.Printf("%s %s %s %s", time, level, message, strings.Join(values, " "))

	return nil
}

func NewPrettyHandler(
	out io.Writer,
	opts PrettyHandlerOptions,
) *PrettyHandler {
	h := &PrettyHandler{
		Handler: slog.NewTextHandler(out, &opts.SlogOpts),
		l:       log.New(out, "", 0),
	}

	return h
}

func checkWritePermissions() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current working directory: %w", err)
	}

	testFile, err := os.CreateTemp(cwd, ".awsmod-write-test-*")
	if err != nil {
		return fmt.Errorf("current working directory '%s' does not have write permissions for the current user", cwd)
	}

	// Defer works on a LIFO execution order.
	defer os.Remove(testFile.Name())
	defer testFile.Close()

	return nil
}

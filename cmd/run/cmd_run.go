package run

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stackmill/awsmod/internal/module"
	"github.com/stackmill/awsmod/internal/modules"
	"github.com/stackmill/awsmod/internal/utils"
)

var (
	paramsPath string
	checkMode  bool
	region     string
	profile    string
)

func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "run <module>",
		Short:         "Run a module",
		Long:          `Runs a single module and prints its result document as JSON on stdout.`,
		Example:       `awsmod run ec2_eip --params eip.yaml --check`,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		PreRunE:       preRunRun,
		RunE:          runRun,
	}

	cmd.Flags().StringVarP(&paramsPath, "params", "p", "", "Path to a YAML or JSON parameter file (reads JSON from stdin when omitted)")
	cmd.Flags().BoolVar(&checkMode, "check", false, "Report what would change without making changes")
	cmd.Flags().StringVar(&region, "region", "", "AWS region (overrides the region parameter)")
	cmd.Flags().StringVar(&profile, "profile", "", "AWS shared config profile")

	return cmd
}

func preRunRun(cmd *cobra.Command, args []string) error {
	return utils.BindEnvToFlags(cmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	name := args[0]

	registry := modules.DefaultRegistry()
	m, ok := registry.Get(name)
	if !ok {
		return fmt.Errorf("unknown module %q, run `awsmod list` for available modules", name)
	}

	raw, err := module.ReadRawParams(paramsPath, os.Stdin)
	if err != nil {
		return err
	}
	if region != "" {
		raw["region"] = region
	}
	if profile != "" {
		raw["profile"] = profile
	}

	result := module.Execute(cmd.Context(), m, raw, checkMode)

	doc, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	fmt.Println(string(doc))

	if result.Failed {
		os.Exit(1)
	}

	return nil
}

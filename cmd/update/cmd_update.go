package update

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	force     bool
	checkOnly bool
)

func NewUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "update",
		Short:         "Update the awsmod binary to the latest version",
		Long:          `Updates the awsmod binary to the latest version by downloading the latest release from github and installing it`,
		SilenceErrors: true,
		RunE:          runUpdate,
	}

	cmd.Flags().BoolVar(&force, "force", false, "Force update without user confirmation")
	cmd.Flags().BoolVar(&checkOnly, "check-only", false, "Only check for updates, don't install")

	return cmd
}

func runUpdate(cmd *cobra.Command, args []string) error {
	updater := NewUpdater(UpdaterOpts{
		Force:     force,
		CheckOnly: checkOnly,
	})
	if err := updater.Run(); err != nil {
		return fmt.Errorf("failed to update: %v", err)
	}

	return nil
}

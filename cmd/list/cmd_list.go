package list

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stackmill/awsmod/internal/modules"
)

func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List available modules",
		Long:          `Lists every registered module with a one line summary.`,
		SilenceErrors: true,
		RunE:          runList,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	registry := modules.DefaultRegistry()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, name := range registry.Names() {
		m, _ := registry.Get(name)
		fmt.Fprintf(w, "%s\t%s\n", name, m.Summary())
	}

	return w.Flush()
}

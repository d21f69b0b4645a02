package doc

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/stackmill/awsmod/internal/modules"
)

func NewDocCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "doc <module>",
		Short:         "Show module documentation",
		Long:          `Renders a module's markdown documentation to the terminal.`,
		Example:       `awsmod doc s3_lifecycle`,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE:          runDoc,
	}
}

func runDoc(cmd *cobra.Command, args []string) error {
	name := args[0]

	registry := modules.DefaultRegistry()
	m, ok := registry.Get(name)
	if !ok {
		return fmt.Errorf("unknown module %q, run `awsmod list` for available modules", name)
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(120),
	)
	if err != nil {
		// Fall back to raw markdown if glamour fails
		fmt.Print(m.Doc())
		return nil
	}

	out, err := renderer.Render(m.Doc())
	if err != nil {
		fmt.Print(m.Doc())
		return nil
	}

	fmt.Print(out)
	return nil
}

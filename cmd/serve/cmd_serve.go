package serve

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackmill/awsmod/cmd/serve/api"
	"github.com/stackmill/awsmod/internal/modules"
	"github.com/stackmill/awsmod/internal/utils"
)

var (
	port string
)

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "serve",
		Short:         "Start the HTTP API",
		Long:          `Starts an HTTP API that lists modules and runs them over REST.`,
		Example:       `awsmod serve --port 8080`,
		SilenceErrors: true,
		PreRunE:       preRunServe,
		RunE:          runServe,
	}

	cmd.Flags().StringVarP(&port, "port", "p", "5580", "Port to run the API server on")

	return cmd
}

func preRunServe(cmd *cobra.Command, args []string) error {
	return utils.BindEnvToFlags(cmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	server := api.NewServer(modules.DefaultRegistry(), api.ServeCmdOpts{Port: port})
	if err := server.Run(); err != nil {
		return fmt.Errorf("failed to start the API server: %v", err)
	}

	return nil
}

// Package commands implements the maasprov command line interface
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/celestiaorg/maasprov/pkg/api/v1/client"
	"github.com/celestiaorg/maasprov/pkg/api/v1/routes"
)

// flag names
const (
	flagServerAddress = "server-address"
	flagTimeout       = "timeout"
)

// environment variable names
const (
	envServerAddress = "MAASPROV_SERVER_ADDRESS"
)

var (
	// apiClient is the shared API client instance
	apiClient client.Client
	// serverAddress holds the target API server address. Flag parsing sets this.
	serverAddress string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "maasprov",
	Short: "maasprov CLI - batch provisioning of MAAS machines",
	Long: `maasprov is a command line tool for submitting and tracking MAAS
provisioning jobs through the maasprov API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Flag > Env Var > Default
		if !cmd.Flags().Changed(flagServerAddress) {
			if envAddr := os.Getenv(envServerAddress); envAddr != "" {
				serverAddress = envAddr
			}
		}
		if serverAddress == "" {
			return fmt.Errorf("server address cannot be empty")
		}

		timeout, _ := cmd.Flags().GetDuration(flagTimeout)
		opts := client.DefaultOptions()
		opts.BaseURL = serverAddress
		if timeout > 0 {
			opts.Timeout = timeout
		}

		var err error
		apiClient, err = client.NewClient(opts)
		return err
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&serverAddress, flagServerAddress, "s", routes.DefaultBaseURL, "Address of the maasprov API server (env: "+envServerAddress+")")
	RootCmd.PersistentFlags().Duration(flagTimeout, client.DefaultTimeout, "API request timeout")

	RootCmd.AddCommand(newProvisionCmd())
	RootCmd.AddCommand(newJobsCmd())
	RootCmd.AddCommand(newMachinesCmd())
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return RootCmd.Execute()
}

// printJSON pretty prints v to w
func printJSON(w io.Writer, v interface{}) error {
	prettyJSON, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error formatting response: %w", err)
	}
	_, err = fmt.Fprintln(w, string(prettyJSON))
	return err
}

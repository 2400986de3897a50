package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// machineOutput represents the filtered output for a machine
type machineOutput struct {
	SystemID string   `json:"system_id"`
	Hostname string   `json:"hostname"`
	Status   string   `json:"status"`
	Pool     string   `json:"pool"`
	Tags     []string `json:"tags"`
}

func newMachinesCmd() *cobra.Command {
	machinesCmd := &cobra.Command{
		Use:   "machines",
		Short: "Inspect the MAAS inventory",
	}

	listMachinesCmd := &cobra.Command{
		Use:   "list",
		Short: "List machines of the visible pools",
		RunE: func(cmd *cobra.Command, _ []string) error {
			machines, err := apiClient.ListMachines(cmd.Context())
			if err != nil {
				return fmt.Errorf("error fetching machines: %w", err)
			}

			output := make([]machineOutput, 0, len(machines))
			for i := range machines {
				m := &machines[i]
				tags := m.TagNames
				if tags == nil {
					tags = []string{}
				}
				output = append(output, machineOutput{
					SystemID: m.SystemID,
					Hostname: m.DisplayName(),
					Status:   m.StatusName,
					Pool:     m.PoolName(),
					Tags:     tags,
				})
			}
			return printJSON(cmd.OutOrStdout(), output)
		},
	}

	machinesCmd.AddCommand(listMachinesCmd)
	return machinesCmd
}

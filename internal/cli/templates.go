package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List household templates available on the server",
		Run: func(cmd *cobra.Command, args []string) {
			printJSON(request("GET", "/v1/templates", nil))
		},
	}

	RootCmd.AddCommand(cmd)
}

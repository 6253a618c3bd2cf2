package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sungho-yun/gapsim/internal/buildconfig"
)

func init() {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print simctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("simctl %s (%s)\n", buildconfig.Version(), buildconfig.Commit())
		},
	}

	RootCmd.AddCommand(cmd)
}

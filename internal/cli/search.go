package cli

import (
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find interaction records by command similarity",
		Args:  cobra.ExactArgs(1),
		Run:   runSearch,
	}
	cmd.Flags().Int("limit", 10, "Maximum results")
	cmd.Flags().String("backfill", "", "Run ID whose command embeddings to build first")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	backfill, _ := cmd.Flags().GetString("backfill")

	if backfill != "" {
		printJSON(request("POST", "/v1/runs/"+backfill+"/embeddings", nil))
	}

	q := url.Values{}
	q.Set("query", args[0])
	q.Set("limit", strconv.Itoa(limit))
	printJSON(request("GET", "/v1/records/search?"+q.Encode(), nil))
}

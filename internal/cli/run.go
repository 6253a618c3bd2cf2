package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sungho-yun/gapsim/internal/domain"
	"github.com/sungho-yun/gapsim/internal/household"
	"github.com/sungho-yun/gapsim/internal/service"
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Manage simulation runs",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a run from a server template or a local household file",
		Run:   runCreate,
	}
	createCmd.Flags().StringP("template", "t", "", "Server-side template name")
	createCmd.Flags().String("household", "", "Local household YAML file to inline")
	createCmd.Flags().String("name", "", "Run name")
	createCmd.Flags().String("start-date", "", "Simulated start date (YYYY-MM-DD)")
	createCmd.Flags().Int("tick-minutes", 0, "Override tick length in minutes")
	createCmd.Flags().Int("gap-threshold", 0, "Override the gap classification threshold")
	createCmd.Flags().Int("recall-limit", 0, "Override how many memories recall exposes")

	startCmd := &cobra.Command{
		Use:   "start <run-id>",
		Short: "Start (or resume) the simulate pass",
		Args:  cobra.ExactArgs(1),
		Run:   runStart,
	}

	statusCmd := &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show run status, per-person progress, and record counts",
		Args:  cobra.ExactArgs(1),
		Run:   runStatus,
	}

	observeCmd := &cobra.Command{
		Use:   "observe <run-id>",
		Short: "Start the observer evaluation pass",
		Args:  cobra.ExactArgs(1),
		Run:   runObserve,
	}

	exportCmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export a finished run",
		Args:  cobra.ExactArgs(1),
		Run:   runExport,
	}
	exportCmd.Flags().StringP("format", "f", "json", "Export format: json, jsonl, or csv")
	exportCmd.Flags().StringP("out", "o", "", "Write to file instead of stdout")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		Run:   runList,
	}
	listCmd.Flags().Int("limit", 20, "Maximum runs to list")

	runCmd.AddCommand(createCmd, startCmd, statusCmd, observeCmd, exportCmd, listCmd)
	RootCmd.AddCommand(runCmd)
}

func runCreate(cmd *cobra.Command, args []string) {
	template, _ := cmd.Flags().GetString("template")
	householdPath, _ := cmd.Flags().GetString("household")
	name, _ := cmd.Flags().GetString("name")
	startDate, _ := cmd.Flags().GetString("start-date")
	tickMinutes, _ := cmd.Flags().GetInt("tick-minutes")
	gapThreshold, _ := cmd.Flags().GetInt("gap-threshold")
	recallLimit, _ := cmd.Flags().GetInt("recall-limit")

	in := service.CreateRunInput{
		Name:      name,
		Template:  template,
		StartDate: startDate,
	}

	if householdPath != "" {
		h, err := household.Load(householdPath)
		if err != nil {
			exitErr("load household", err)
		}
		in.Household = h
	}

	if tickMinutes > 0 || gapThreshold > 0 || recallLimit > 0 {
		in.Params = &domain.RunParams{
			TickMinutes:  tickMinutes,
			GapThreshold: gapThreshold,
			RecallLimit:  recallLimit,
		}
	}

	printJSON(request("POST", "/v1/runs", in))
}

func runStart(cmd *cobra.Command, args []string) {
	printJSON(request("POST", "/v1/runs/"+args[0]+"/start", nil))
}

func runStatus(cmd *cobra.Command, args []string) {
	printJSON(request("GET", "/v1/runs/"+args[0], nil))
}

func runObserve(cmd *cobra.Command, args []string) {
	printJSON(request("POST", "/v1/runs/"+args[0]+"/observe", nil))
}

func runExport(cmd *cobra.Command, args []string) {
	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")

	data := request("GET", "/v1/runs/"+args[0]+"/export?format="+format, nil)

	if out != "" {
		if err := os.WriteFile(out, data, 0o644); err != nil {
			exitErr("write export", err)
		}
		fmt.Printf("wrote %d bytes to %s\n", len(data), out)
		return
	}

	if format == "json" {
		printJSON(data)
		return
	}
	fmt.Print(string(data))
}

func runList(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	printJSON(request("GET", fmt.Sprintf("/v1/runs?limit=%d", limit), nil))
}

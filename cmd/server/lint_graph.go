package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bhuvesh-solnce/backend/internal/application/services"
	"github.com/bhuvesh-solnce/backend/internal/infrastructure/database"
)

func newLintGraphCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "lint-graph <workflow-id>",
		Short: "Report cycles, dangling reject targets and broken expressions in a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || workflowID <= 0 {
				return fmt.Errorf("workflow id must be a positive integer, got %q", args[0])
			}

			db, err := database.Open(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			svcMgr, err := services.NewServiceManager(db, cfg.Outbox)
			if err != nil {
				return err
			}

			report, err := svcMgr.Workflows.ValidateGraph(cmd.Context(), workflowID)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if strict && !report.Clean() {
				return fmt.Errorf("workflow %d has graph issues", workflowID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any issue is found")
	return cmd
}

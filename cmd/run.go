// File: cmd/run.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/profenpoche/daav-sub000/internal/config"
	"github.com/profenpoche/daav-sub000/internal/observability"
)

var runNodeID string

// runCmd loads a stored project, submits it to the execution backend and
// saves the annotated result back under a fresh revision.
var runCmd = &cobra.Command{
	Use:   "run <project-id>",
	Short: "Execute a stored project on the backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := observability.GetLogger()
		projectID := args[0]

		components, err := NewComponents(ctx, config.Get())
		if err != nil {
			return err
		}
		defer components.Shutdown()

		st, err := components.RequireStore()
		if err != nil {
			return err
		}

		project, err := st.Load(ctx, projectID)
		if err != nil {
			return err
		}
		if err := components.Editor.Import(*project); err != nil {
			return err
		}

		if err := components.Runner.Run(ctx, runNodeID); err != nil {
			return fmt.Errorf("executing project %s: %w", projectID, err)
		}

		annotated := components.Editor.Export()
		revision, err := st.Save(ctx, &annotated)
		if err != nil {
			return fmt.Errorf("saving execution result: %w", err)
		}

		logger.Info("Project executed",
			zap.String("project_id", projectID),
			zap.String("node_id", runNodeID),
			zap.String("revision", revision))
		fmt.Fprintf(cmd.OutOrStdout(), "project %s executed, revision %s\n", projectID, revision)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runNodeID, "node", "", "execute a single node instead of the whole project")
}

// File: cmd/validate.go
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/profenpoche/daav-sub000/api/schemas"
	"github.com/profenpoche/daav-sub000/internal/config"
	"github.com/profenpoche/daav-sub000/internal/observability"
)

// validateCmd loads a project file into a fresh editor. A project that imports
// cleanly is structurally sound: every node type resolves, every connection
// lands on existing, socket-compatible ports.
var validateCmd = &cobra.Command{
	Use:   "validate <project.json>",
	Short: "Check that a project file loads into the editor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading project file: %w", err)
		}
		var project schemas.Project
		if err := json.Unmarshal(raw, &project); err != nil {
			return fmt.Errorf("decoding project file: %w", err)
		}

		components, err := NewComponents(cmd.Context(), config.Get())
		if err != nil {
			return err
		}
		defer components.Shutdown()

		if err := components.Editor.Import(project); err != nil {
			return fmt.Errorf("project %q failed validation: %w", project.Name, err)
		}

		incomplete := 0
		for _, n := range components.Editor.Nodes() {
			if !n.CanExecute() {
				incomplete++
				logger.Warn("Node is not executable",
					zap.String("node_id", n.ID()),
					zap.String("type", n.Type()),
					zap.String("label", n.Label()))
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "project %q: %d nodes, %d connections, %d incomplete\n",
			project.Name, len(components.Editor.Nodes()), len(components.Editor.Connections()), incomplete)
		return nil
	},
}

// File: cmd/projects.go
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/profenpoche/daav-sub000/api/schemas"
	"github.com/profenpoche/daav-sub000/internal/config"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage stored projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		components, err := NewComponents(ctx, config.Get())
		if err != nil {
			return err
		}
		defer components.Shutdown()

		st, err := components.RequireStore()
		if err != nil {
			return err
		}
		summaries, err := st.List(ctx)
		if err != nil {
			return err
		}
		for _, s := range summaries {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", s.ID, s.Revision, s.Name)
		}
		return nil
	},
}

var projectsImportCmd = &cobra.Command{
	Use:   "import <project.json>",
	Short: "Validate a project file and store it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading project file: %w", err)
		}
		var project schemas.Project
		if err := json.Unmarshal(raw, &project); err != nil {
			return fmt.Errorf("decoding project file: %w", err)
		}

		components, err := NewComponents(ctx, config.Get())
		if err != nil {
			return err
		}
		defer components.Shutdown()

		st, err := components.RequireStore()
		if err != nil {
			return err
		}

		// Round-trip through the editor so only loadable projects are stored.
		if err := components.Editor.Import(project); err != nil {
			return err
		}
		normalized := components.Editor.Export()

		revision, err := st.Save(ctx, &normalized)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "project %s stored, revision %s\n", normalized.ID, revision)
		return nil
	},
}

var projectsExportCmd = &cobra.Command{
	Use:   "export <project-id>",
	Short: "Print a stored project as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		components, err := NewComponents(ctx, config.Get())
		if err != nil {
			return err
		}
		defer components.Shutdown()

		st, err := components.RequireStore()
		if err != nil {
			return err
		}
		project, err := st.Load(ctx, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(project)
	},
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a stored project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		components, err := NewComponents(ctx, config.Get())
		if err != nil {
			return err
		}
		defer components.Shutdown()

		st, err := components.RequireStore()
		if err != nil {
			return err
		}
		if err := st.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "project %s deleted\n", args[0])
		return nil
	},
}

func init() {
	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsImportCmd)
	projectsCmd.AddCommand(projectsExportCmd)
	projectsCmd.AddCommand(projectsDeleteCmd)
}

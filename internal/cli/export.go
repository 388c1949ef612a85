package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/internal/export"
	"github.com/mesh-intelligence/pantry/internal/paths"
)

func newExportCmd(flags *rootFlags) *cobra.Command {
	var sqlitePath, jsonlDir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the seeded store to SQLite or JSONL",
		Long: `Export writes every table of the seeded store. --sqlite writes one
SQLite database file; --jsonl writes one <table>.jsonl file per table.
With neither flag, JSONL goes to the configured export_dir,
$PANTRY_EXPORT_DIR, or ./.pantry-export.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sqlitePath != "" && jsonlDir != "" {
				return usageError("--sqlite and --jsonl are mutually exclusive")
			}
			return withSession(flags, cmd.ErrOrStderr(), func(s *session) error {
				out := cmd.OutOrStdout()
				if sqlitePath != "" {
					if err := export.ToSQLite(cmd.Context(), s.store, sqlitePath); err != nil {
						return err
					}
					fmt.Fprintf(out, "exported to %s\n", sqlitePath)
					return nil
				}

				dir, err := paths.ResolveExportDir(jsonlDir, s.cfg.ExportDir)
				if err != nil {
					return fmt.Errorf("resolve export dir: %w", err)
				}
				if err := export.ToJSONL(s.store, dir); err != nil {
					return err
				}
				fmt.Fprintf(out, "exported to %s\n", dir)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&sqlitePath, "sqlite", "", "SQLite database file to write")
	cmd.Flags().StringVar(&jsonlDir, "jsonl", "", "directory to write <table>.jsonl files into")
	return cmd
}

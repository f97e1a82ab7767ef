package cli

import (
	"github.com/spf13/cobra"
)

// NewExportCommand creates the export command.
func NewExportCommand(root *RootOptions) *cobra.Command {
	var includeDependencies bool

	cmd := &cobra.Command{
		Use:   "export <directory> [tables...]",
		Short: "Export tables to one CSV file each",
		Long: `Export writes <directory>/<table>.csv for every selected table (all tables
when none are given) from a single read-only snapshot of the database.`,
		Args: directoryArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sess, err := root.connect(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			plan, err := sess.plan(ctx, args[1:], includeDependencies)
			if err != nil {
				return err
			}

			result, err := sess.service().Export(ctx, args[0], plan)
			if err != nil {
				return err
			}
			writeExport(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&includeDependencies, "include-dependent-tables", "i", false,
		"also export every table the selected tables reference")

	return cmd
}

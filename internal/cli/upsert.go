package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/pgmerge/internal/core"
)

// NewUpsertCommand creates the upsert command.
func NewUpsertCommand(root *RootOptions) *cobra.Command {
	var (
		includeDependencies bool
		singleTransaction   bool
	)

	cmd := &cobra.Command{
		Use:     "upsert <directory> [tables...]",
		Aliases: []string{"merge", "import"},
		Short:   "Merge CSV snapshots into the database",
		Long: `Upsert reads <directory>/<table>.csv for every selected table and merges it
into the live table in foreign key order: identical rows are skipped, rows
with a known identity key are updated and the rest are inserted.

Each table is merged in its own transaction unless --single-transaction is
given. A table that fails is rolled back and the run continues; the exit
status is 1 if any table failed.`,
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

			report, err := sess.service().Upsert(ctx, args[0], plan,
				core.UpsertOptions{SingleTransaction: singleTransaction})
			if report != nil {
				writeReport(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return err
			}
			if report.Failed() {
				return NewExitError(ExitFailure, fmt.Sprintf("%d tables failed", report.Count(core.StatusFailed)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&includeDependencies, "include-dependent-tables", "i", false,
		"also merge every table the selected tables reference")
	cmd.Flags().BoolVar(&singleTransaction, "single-transaction", false,
		"merge all tables in one transaction, with a savepoint per table")

	return cmd
}

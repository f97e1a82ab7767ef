package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/pgmerge/internal/graph"
)

// InspectOptions selects the sections printed by inspect.
type InspectOptions struct {
	ListTables          bool
	TableDetails        bool
	Cycles              bool
	InsertOrder         bool
	DeleteOrder         bool
	IncludeDependencies bool
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(root *RootOptions) *cobra.Command {
	opts := &InspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect [tables...]",
		Short: "Show tables, foreign key cycles and the insertion order",
		Long: `Inspect prints what export and upsert would work with: the selected tables,
their keys and foreign keys, the foreign key cycles that are broken for
ordering and the resulting insertion and deletion orders. Without flags it lists tables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sess, err := root.connect(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			plan, err := sess.plan(ctx, args, opts.IncludeDependencies)
			if err != nil {
				return err
			}
			return writeInspect(cmd.OutOrStdout(), plan, *opts)
		},
	}

	cmd.Flags().BoolVar(&opts.ListTables, "list-tables", false, "list the selected tables")
	cmd.Flags().BoolVar(&opts.TableDetails, "table-details", false, "show columns, keys and foreign keys per table")
	cmd.Flags().BoolVar(&opts.Cycles, "cycles", false, "show foreign key cycles and the edges broken to order them")
	cmd.Flags().BoolVar(&opts.InsertOrder, "insert-order", false, "show the order tables are merged in")
	cmd.Flags().BoolVar(&opts.DeleteOrder, "delete-order", false, "show the order rows can be deleted in, dependent tables first")
	cmd.Flags().BoolVarP(&opts.IncludeDependencies, "include-dependent-tables", "i", false,
		"add every table the selected tables reference")

	return cmd
}

// writeInspect prints the requested sections separated by blank lines.
func writeInspect(w io.Writer, plan *graph.Plan, opts InspectOptions) error {
	type section struct {
		enabled bool
		write   func(io.Writer, *graph.Plan) error
	}
	sections := []section{
		{opts.ListTables, writeTableList},
		{opts.TableDetails, writeTableDetails},
		{opts.Cycles, writeCycles},
		{opts.InsertOrder, writeInsertOrder},
		{opts.DeleteOrder, writeDeleteOrder},
	}

	selected := false
	for _, s := range sections {
		selected = selected || s.enabled
	}
	if !selected {
		sections[0].enabled = true
	}

	first := true
	for _, s := range sections {
		if !s.enabled {
			continue
		}
		if !first {
			fmt.Fprintln(w)
		}
		first = false
		if err := s.write(w, plan); err != nil {
			return err
		}
	}
	return nil
}

func writeTableList(w io.Writer, plan *graph.Plan) error {
	fmt.Fprintf(w, "Tables (%d):\n", len(plan.Tables))
	for _, name := range plan.Tables {
		fmt.Fprintf(w, "  %s\n", name)
	}
	return nil
}

func writeTableDetails(w io.Writer, plan *graph.Plan) error {
	cycleFKs := plan.Selected.CycleForeignKeys()

	for i, name := range plan.Tables {
		if i > 0 {
			fmt.Fprintln(w)
		}
		table, _ := plan.Schema.Table(name)

		fmt.Fprintf(w, "%s\n", name)
		fmt.Fprintf(w, "  columns: %s\n", strings.Join(table.ColumnNames(), ", "))
		if len(table.PrimaryKey) > 0 {
			fmt.Fprintf(w, "  primary key: %s\n", strings.Join(table.PrimaryKey, ", "))
		} else {
			fmt.Fprintln(w, "  primary key: none")
		}
		for _, uk := range table.UniqueKeys {
			fmt.Fprintf(w, "  unique %s: %s\n", uk.Name, strings.Join(uk.Columns, ", "))
		}
		for _, fk := range table.ForeignKeys {
			fmt.Fprintf(w, "  foreign key %s: (%s) -> %s(%s)\n", fk.Name,
				strings.Join(fk.FromColumns, ", "), fk.ToTable, strings.Join(fk.ToColumns, ", "))
		}
		if fks := cycleFKs[name]; len(fks) > 0 {
			fmt.Fprintf(w, "  in cycles: %s\n", strings.Join(fks, ", "))
		}
	}
	return nil
}

func writeCycles(w io.Writer, plan *graph.Plan) error {
	cycles, err := plan.Selected.SimpleCycles(graph.MaxSimpleCycles)
	if err != nil {
		return err
	}
	if len(cycles) == 0 {
		fmt.Fprintln(w, "No foreign key cycles")
		return nil
	}

	fmt.Fprintf(w, "Cycles (%d):\n", len(cycles))
	for _, c := range cycles {
		fmt.Fprintf(w, "  %s -> %s\n", strings.Join(c, " -> "), c[0])
	}
	fmt.Fprintf(w, "Broken edges (%d):\n", len(plan.Broken))
	for _, b := range plan.Broken {
		fmt.Fprintf(w, "  %s\n", b)
	}
	return nil
}

func writeInsertOrder(w io.Writer, plan *graph.Plan) error {
	fmt.Fprintln(w, "Insertion order:")
	for i, name := range plan.InsertionOrder {
		fmt.Fprintf(w, "  %d. %s\n", i+1, name)
	}
	return nil
}

func writeDeleteOrder(w io.Writer, plan *graph.Plan) error {
	fmt.Fprintln(w, "Deletion order:")
	for i, name := range plan.DeletionOrder {
		fmt.Fprintf(w, "  %d. %s\n", i+1, name)
	}
	return nil
}

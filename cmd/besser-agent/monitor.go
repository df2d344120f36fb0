package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/monitoring"
)

var monitorLimit int

var monitorCmd = &cobra.Command{
	Use:   "monitor [table...]",
	Short: "Print the monitoring database tables",
	Long: fmt.Sprintf(`Print the rows of the monitoring database configured by the db.monitoring.*
properties. Without arguments every table is printed.

Tables: %s`, strings.Join(monitoring.Tables, ", ")),
	RunE: func(cmd *cobra.Command, args []string) error {
		props, err := loadProperties()
		if err != nil {
			return err
		}
		cfg := monitoring.ConfigFromProperties(props)
		cfg.Logger = logger
		db, err := monitoring.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close(cmd.Context()) }()

		tables := args
		if len(tables) == 0 {
			tables = monitoring.Tables
		}
		for _, table := range tables {
			columns, rows, err := db.Rows(cmd.Context(), table, monitorLimit)
			if err != nil {
				return err
			}
			printTable(cmd.OutOrStdout(), table, columns, rows)
		}
		return nil
	},
}

func init() {
	monitorCmd.Flags().IntVarP(&monitorLimit, "limit", "n", 50, "last rows per table, 0 for all")
	rootCmd.AddCommand(monitorCmd)
}

func printTable(out io.Writer, name string, columns []string, rows [][]string) {
	color.New(color.Bold).Fprintf(out, "%s (%d rows)\n", name, len(rows))
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(columns, "\t")))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
	fmt.Fprintln(out)
}

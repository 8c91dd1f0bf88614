package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"Gin_postgres_redis_equipment_loans/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStorage(true)
		if err != nil {
			return err
		}
		defer st.Close()
		fmt.Println("schema is up to date")
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep-overdue",
	Short: "Mark loans past their approved end as OVERDUE and resync equipment status",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStorage(false)
		if err != nil {
			return err
		}
		defer st.Close()

		eng, err := app.NewEngine(st.Store, cfg, logger, nil)
		if err != nil {
			return err
		}
		n, err := eng.SweepOverdue(cmd.Context())
		if err != nil {
			return err
		}
		synced, err := eng.ResyncAll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%d loan(s) marked overdue, %d equipment resynced\n", n, synced)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, sweepCmd)
}

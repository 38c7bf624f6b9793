package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorechamp/internal/store"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and report the schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := bootstrap()
			if err != nil {
				return err
			}
			defer st.Close()

			sqlStore, ok := st.(*store.SQLStore)
			if !ok {
				return errors.New("the memory driver has no schema to migrate")
			}
			version, err := sqlStore.DB().Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema at version %d\n", cfg.DBDriver, version)
			return nil
		},
	}
}

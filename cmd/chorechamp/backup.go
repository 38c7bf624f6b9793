package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorechamp/internal/backup"
	"github.com/dukerupert/chorechamp/internal/config"
	"github.com/dukerupert/chorechamp/internal/database"
	"github.com/dukerupert/chorechamp/internal/logging"
	"github.com/dukerupert/chorechamp/internal/store"
)

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Encrypted SQLite snapshots in S3-compatible storage",
	}
	cmd.AddCommand(backupRunCmd(), backupListCmd(), backupPruneCmd(), backupRestoreCmd())
	return cmd
}

func newBackupManager(cfg *config.Config, db *sql.DB) (*backup.Manager, error) {
	b := cfg.Backup
	return backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  b.Endpoint,
			Bucket:    b.Bucket,
			Region:    b.Region,
			AccessKey: b.AccessKey,
			SecretKey: b.SecretKey,
		},
		Prefix:     b.Prefix,
		Passphrase: b.Passphrase,
		Retention:  b.Retention,
	}, db, slog.Default().With("component", "backup"))
}

// sqliteHandle returns the database behind st, which must use the sqlite driver.
func sqliteHandle(st store.Store) (*sql.DB, error) {
	sqlStore, ok := st.(*store.SQLStore)
	if !ok || sqlStore.DB().Dialect != database.SQLite {
		return nil, errors.New("backups are only supported for the sqlite driver")
	}
	return sqlStore.DB().DB, nil
}

func backupRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Take a backup now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := bootstrap()
			if err != nil {
				return err
			}
			defer st.Close()

			db, err := sqliteHandle(st)
			if err != nil {
				return err
			}
			mgr, err := newBackupManager(cfg, db)
			if err != nil {
				return err
			}
			obj, err := mgr.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%d bytes)\n", obj.Key, obj.Size)
			return nil
		},
	}
}

// storageOnly loads configuration without opening the database.
func storageOnly() (*backup.Manager, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	return newBackupManager(cfg, nil)
}

func backupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := storageOnly()
			if err != nil {
				return err
			}
			objects, err := mgr.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tSIZE\tCREATED")
			for _, o := range objects {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", o.Key, o.Size, o.LastModified.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
}

func backupPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete backups older than CHORECHAMP_BACKUP_RETENTION",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := storageOnly()
			if err != nil {
				return err
			}
			n, err := mgr.Prune(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d backups\n", n)
			return nil
		},
	}
}

func backupRestoreCmd() *cobra.Command {
	var out string
	var force bool
	cmd := &cobra.Command{
		Use:   "restore <key>",
		Short: "Download and decrypt a backup into a database file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logging.Setup(cfg.LogLevel, cfg.LogFormat)

			if out == "" {
				out = cfg.DBPath
			}
			if _, err := os.Stat(out); err == nil && !force {
				return fmt.Errorf("%s exists; stop the server and pass --force to replace it", out)
			}

			mgr, err := newBackupManager(cfg, nil)
			if err != nil {
				return err
			}
			if err := mgr.Restore(cmd.Context(), args[0], out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s to %s\n", args[0], out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "destination file (default CHORECHAMP_DB_PATH)")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing file")
	return cmd
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/trezcool/registrar/storage/database"
)

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose migration command (up, up-by-one, up-to, down, down-to, redo, reset, status, version, fix)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			return cli.migrate(cmd, args)
		},
	}
}

func (cli *commandLine) migrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db, err := cli.database(ctx)
	if err != nil {
		return err
	}
	return database.RunMigrations(ctx, db, args[0], args[1:]...)
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gitlab.com/dirk.krummacker/rolodex/internal/config"
	"gitlab.com/dirk.krummacker/rolodex/internal/store"
)

// Usage examples on the command line:
// > DBHOST=localhost DBUSER=dirk DBPWD=bullo92 go run main.go --file=../../scripts/database.sql
// > DBDRIVER=sqlite3 DBNAME=contacts.db go run main.go
func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "migration",
		Short: "Creates the contacts table in the configured database",
		Long: "Creates the contacts table in the configured database. Without --file the built-in " +
			"schema of the configured driver is applied; it is safe to run repeatedly.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := store.Open(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			if file != "" {
				return executeFile(cmd.Context(), db, file)
			}
			if err := store.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			cmd.Printf("contacts table is ready in %s database %s\n", cfg.Database.Driver, cfg.Database.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "the sql file to execute instead of the built-in schema")
	return cmd
}

// executeFile runs the statements of an SQL file one after the other. A statement ends with the
// line that contains a semicolon.
func executeFile(ctx context.Context, db *sqlx.DB, path string) error {
	readFile, err := os.Open(path) // nosemgrep
	if err != nil {
		return err
	}
	defer readFile.Close()

	fileScanner := bufio.NewScanner(readFile)
	fileScanner.Split(bufio.ScanLines)
	builder := strings.Builder{}
	for fileScanner.Scan() {
		line := fileScanner.Text()
		builder.WriteString(line)
		builder.WriteString(" ")
		if strings.Contains(line, ";") {
			statement := builder.String()
			if _, err := db.ExecContext(ctx, statement); err != nil {
				return fmt.Errorf("executing %q: %w", strings.TrimSpace(statement), err)
			}
			builder = strings.Builder{}
		}
	}
	return fileScanner.Err()
}

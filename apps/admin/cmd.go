package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/registrar/client"
	"github.com/trezcool/registrar/core"
	"github.com/trezcool/registrar/core/cache"
	"github.com/trezcool/registrar/core/importer"
	"github.com/trezcool/registrar/core/student"
	"github.com/trezcool/registrar/storage/database"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errHelp = errors.New("help provided")
)

// apiClient is the part of client.Client the commands use.
type apiClient interface {
	importer.Uploader
	PreviewStudents(ctx context.Context, filename string, r io.Reader) (importer.Preview, error)
	CommitStudents(ctx context.Context, filename string, r io.Reader) (importer.CommitReport, error)
	Identities(ctx context.Context) ([]student.Identity, error)
	CacheStats(ctx context.Context, ns string) ([]cache.Stats, error)
	ClearCache(ctx context.Context, ns string) error
}

var _ apiClient = (*client.Client)(nil)

type commandLine struct {
	conf   *core.Config
	logger core.Logger
	in     io.Reader
	out    io.Writer
	stdin  int // file descriptor checked for a terminal before prompting

	apiURL string
	actor  string
	api    apiClient
	closer func()

	openDB func(ctx context.Context) (*sql.DB, error)
	db     *sql.DB
}

func newCommandLine(conf *core.Config, logger core.Logger) *commandLine {
	cli := &commandLine{
		conf:   conf,
		logger: logger,
		in:     os.Stdin,
		out:    os.Stdout,
		stdin:  int(os.Stdin.Fd()),
	}
	cli.openDB = func(ctx context.Context) (*sql.DB, error) {
		db, err := database.Open(ctx, cli.conf)
		if err != nil {
			return nil, err
		}
		return db.DB, nil
	}
	return cli
}

func (cli *commandLine) defaultAPIURL() string {
	addr := cli.conf.Server.Address
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

// client builds the API client on first use.
func (cli *commandLine) client() apiClient {
	if cli.api == nil {
		c := client.New(client.Options{
			BaseURL:          cli.apiURL,
			Actor:            cli.actor,
			Logger:           cli.logger,
			RefreshWorkers:   1,
			RefreshQueueSize: 1,
		})
		cli.api, cli.closer = c, c.Close
	}
	return cli.api
}

func (cli *commandLine) database(ctx context.Context) (*sql.DB, error) {
	if cli.db == nil {
		db, err := cli.openDB(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "opening database")
		}
		cli.db = db
	}
	return cli.db, nil
}

func (cli *commandLine) close() {
	if cli.closer != nil {
		cli.closer()
	}
	if cli.db != nil {
		if err := cli.db.Close(); err != nil {
			cli.logger.Error("Failed to close database", err)
		}
	}
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, args...)
}

// confirm asks a yes/no question on the terminal. Without a terminal, nothing is confirmed.
func (cli *commandLine) confirm(question string) (bool, error) {
	if !isTerminalFunc(cli.stdin) {
		return false, nil
	}
	cli.printf("%s [y/N]: ", question)
	answer, err := bufio.NewReader(cli.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, errors.Wrap(err, "reading answer")
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Registrar administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)
	root.PersistentFlags().StringVar(&cli.apiURL, "api", cli.defaultAPIURL(), "Base URL of the registrar API")
	root.PersistentFlags().StringVar(&cli.actor, "actor", "admin", "Name recorded in the audit log")

	root.AddCommand(cli.migrateCmd(), cli.importCmd(), cli.cacheCmd())
	return root
}

// run executes the command line; args include the program name.
func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) > 0 {
		args = args[1:]
	}
	root.SetArgs(args)
	return root.Execute()
}

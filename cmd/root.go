package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"
	"github.com/wkalt/teeql/history"
	"github.com/wkalt/teeql/output"
	"github.com/wkalt/teeql/query"
	"github.com/wkalt/teeql/query/executor"
	"github.com/wkalt/teeql/storage"
	"github.com/wkalt/teeql/util/log"
)

var (
	command   string
	format    string
	logLevel  string
	chunkSize int
	historyDB string
	stats     bool
	maxRows   int

	// S3 storage provider options
	s3Endpoint  string
	s3AccessKey string
	s3SecretKey string
	s3UseTLS    bool
	s3Region    string
)

var rootCmd = &cobra.Command{
	Use:   "teeql",
	Short: "teeql runs SQL queries whose tee() calls copy rows to delimited files",
	Long: `teeql runs SQL queries over generated rows and delimited files. The tee table
function passes the rows of a subquery through unchanged while writing them to
a file:

  teeql -c "SELECT * FROM tee((SELECT 42 AS a), path='out.csv')"

Without -c, statements are read from stdin, or an interactive shell is started
when stdin is a terminal.`,
	Args:              cobra.NoArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: configure,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		env, err := newEnvironment()
		if err != nil {
			return err
		}
		defer env.Close()
		switch {
		case command != "":
			return env.exec(ctx, command, os.Stdout)
		case !readline.IsTerminal(int(os.Stdin.Fd())):
			script, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			return env.exec(ctx, string(script), os.Stdout)
		default:
			stop()
			return runShell(cmd.Context(), env)
		}
	},
}

// Execute runs the command line. Any error is printed to stderr and exits
// with status 1.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func printError(w io.Writer, err error) {
	color.New(color.FgRed).Fprintf(w, "error: %s\n", err)
}

func configure(*cobra.Command, []string) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	log.Configure(os.Stderr, level)
	if _, err := output.ParseFormat(format); err != nil {
		return err
	}
	if chunkSize <= 0 {
		return fmt.Errorf("invalid chunk size %d: must be positive", chunkSize)
	}
	return nil
}

// environment holds the engine and stores shared by every subcommand.
type environment struct {
	storage executor.Storage
	history history.Store
	engine  *query.Engine
	closers []io.Closer
}

func newEnvironment() (*environment, error) {
	env := &environment{}
	store, err := newStorage()
	if err != nil {
		return nil, err
	}
	env.storage = store
	if historyDB != "" {
		sqlstore, db, err := history.Open(historyDB)
		if err != nil {
			return nil, err
		}
		env.history = sqlstore
		env.closers = append(env.closers, db)
	}
	opts := []query.Option{
		query.WithStorage(env.storage),
		query.WithHistory(env.history),
		query.WithChunkSize(chunkSize),
	}
	if stats {
		opts = append(opts, query.WithStats(os.Stderr))
	}
	env.engine = query.NewEngine(opts...)
	return env, nil
}

// Close releases the environment's stores.
func (e *environment) Close() error {
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close: %w", err)
		}
	}
	return nil
}

func (e *environment) exec(ctx context.Context, script string, w io.Writer) error {
	f, err := output.ParseFormat(format)
	if err != nil {
		return err
	}
	writer, err := output.NewWriter(f, w,
		output.WithTermWidth(readline.GetScreenWidth()),
		output.WithMaxRows(maxRows),
	)
	if err != nil {
		return err
	}
	return e.engine.Exec(ctx, script, writer)
}

// newStorage resolves unqualified paths against the working directory, and
// s3:// paths against the configured endpoint if there is one.
func newStorage() (*storage.Registry, error) {
	registry := storage.NewRegistry(storage.NewDirectoryStore(""))
	if s3Endpoint == "" {
		return registry, nil
	}
	mc, err := minio.New(s3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(s3AccessKey, s3SecretKey, ""),
		Secure: s3UseTLS,
		Region: s3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating S3 client: %w", err)
	}
	registry.Register("s3", storage.NewS3Store(mc))
	return registry, nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	rootCmd.Flags().StringVarP(&command, "command", "c", "", "Run the given statements and exit")
	flags.StringVarP(&format, "format", "f", "table", "Result format: table, csv or json")
	flags.StringVarP(&logLevel, "log-level", "l", "info", "Log level: debug, info, warn or error")
	flags.IntVar(&chunkSize, "chunk-size", executor.DefaultChunkSize, "Maximum rows per execution chunk")
	flags.StringVar(&historyDB, "history-db", "", "Path of a sqlite database recording tee invocations")
	flags.BoolVar(&stats, "stats", false, "Print per-node execution stats to stderr")
	flags.IntVar(&maxRows, "max-rows", output.DefaultMaxRows, "Rows shown by the table format; 0 shows all")

	flags.StringVar(&s3Endpoint, "s3-endpoint", "", "S3 endpoint for s3:// paths")
	flags.StringVar(&s3AccessKey, "s3-access-key-id", "", "S3 access key ID")
	flags.StringVar(&s3SecretKey, "s3-secret-key", "", "S3 secret key")
	flags.BoolVarP(&s3UseTLS, "s3-tls", "t", false, "Use TLS for S3")
	flags.StringVar(&s3Region, "s3-region", "", "S3 region")
}

package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"canvas-batch/internal/canvas"
	"canvas-batch/internal/config"
	"canvas-batch/internal/csvio"
	"canvas-batch/internal/logging"
	"canvas-batch/internal/util"
)

// Application-level sentinel errors.
var (
	ErrUsage          = errors.New("usage error")
	ErrConfigNotFound = errors.New("configuration file not found")
	ErrMissingArgs    = errors.New("missing required arguments")
	// ErrValidation is returned when schema or row validation rejected the
	// file; the report carries the details.
	ErrValidation = errors.New("input validation failed")
	// ErrWarnings is returned when gradebook reconciliation produced
	// warnings and the run did not acknowledge them.
	ErrWarnings = errors.New("warnings present; re-run with -ack-warnings to proceed")
	// ErrBatchFailures is returned when one or more remote calls failed;
	// the report carries every failure payload.
	ErrBatchFailures = errors.New("one or more batch items failed")
)

// Factory variables overridable in tests.
var (
	newTableReaderFunc  = csvio.NewTableReader
	newRosterSourceFunc = csvio.NewRosterSource
	newClientFunc       = func(baseURL, token string) canvas.Client {
		return canvas.NewHTTPClient(baseURL, token, nil)
	}
	osStatFunc = os.Stat
)

// AppRunner encapsulates the application's execution logic.
type AppRunner struct{}

// NewAppRunner creates a new instance of the application runner.
func NewAppRunner() *AppRunner {
	return &AppRunner{}
}

const usageText = `Usage:
  canvas-batch [options]

Options:
  -config string
        YAML configuration file (default "config/batch-config.yaml")
  -input string
        Override input file path from config
  -output string
        Override output file path from config
  -op string
        Override operation type from config
  -token string
        Canvas API token (overrides config and CANVAS_TOKEN env var)
  -db string
        PostgreSQL connection string for postgres rosters (overrides DB_CREDENTIALS env var)
  -loglevel string
        Logging level (none, error, warn, info, debug) (default "info")
  -dry-run
        Parse and validate without making any Canvas calls (default false)
  -ack-warnings
        Proceed past gradebook warnings (default false)
  -help
        Show help

Environment Variables:
  CANVAS_TOKEN     Canvas API token (used if -token and config token are not set)
  DB_CREDENTIALS   PostgreSQL connection string (used if -db is not set)
  Any VAR          Can be used in config paths/connection strings via $VAR/${VAR} or %VAR%

Examples:
  canvas-batch -config=enroll-config.yaml -input=/data/enrollments.csv
  canvas-batch -config=gradebook-config.yaml -ack-warnings
  canvas-batch -config=sections-config.yaml -dry-run -loglevel=debug
`

// Usage prints the command-line help information to the specified writer.
func (a *AppRunner) Usage(writer io.Writer) {
	fmt.Fprint(writer, usageText)
}

// Run parses command-line arguments and executes one batch submission.
func (a *AppRunner) Run(args []string) error {
	fs := flag.NewFlagSet("canvas-batch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configFile := fs.String("config", "config/batch-config.yaml", "YAML configuration file")
	flagInputFile := fs.String("input", "", "Override input file path from config")
	flagOutputFile := fs.String("output", "", "Override output file path from config")
	flagOperation := fs.String("op", "", "Override operation type from config")
	flagToken := fs.String("token", "", "Canvas API token")
	dbConnStr := fs.String("db", "", "PostgreSQL connection string")
	logLevelStr := fs.String("loglevel", "info", "Logging level")
	dryRunFlag := fs.Bool("dry-run", false, "Perform dry run")
	ackWarningsFlag := fs.Bool("ack-warnings", false, "Proceed past gradebook warnings")
	helpFlag := fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			a.Usage(os.Stderr)
			return nil
		}
		logging.Logf(logging.Error, "Failed to parse args: %v", err)
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *helpFlag || (len(args) == 0 && !anyFlagsSet(fs)) {
		a.Usage(os.Stderr)
		return nil
	}

	logging.SetupLogging(*logLevelStr)
	if _, err := osStatFunc(*configFile); err != nil {
		if os.IsNotExist(err) {
			logging.Logf(logging.Error, "Config file '%s' not found.", *configFile)
			return ErrConfigNotFound
		}
		return fmt.Errorf("failed to stat config file '%s': %w", *configFile, err)
	}
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logging.Logf(logging.Error, "Error loading/validating config '%s': %v", *configFile, err)
		return err
	}

	if !isFlagSet(fs, "loglevel") && cfg.Logging.Level != "" {
		logging.SetupLogging(cfg.Logging.Level)
	}

	if *flagOperation != "" {
		cfg.Operation.Type = strings.ToLower(*flagOperation)
		logging.Logf(logging.Info, "Override operation: %s", cfg.Operation.Type)
	}
	if *flagInputFile != "" {
		cfg.Input.File = *flagInputFile
		logging.Logf(logging.Info, "Override input: %s", cfg.Input.File)
	}
	if *flagOutputFile != "" {
		cfg.Output.File = *flagOutputFile
		logging.Logf(logging.Info, "Override output: %s", cfg.Output.File)
	}
	cfg.Input.File = util.ExpandEnv(cfg.Input.File)
	cfg.Output.File = util.ExpandEnv(cfg.Output.File)
	if cfg.Roster != nil {
		cfg.Roster.File = util.ExpandEnv(cfg.Roster.File)
	}

	token := *flagToken
	if token == "" {
		token = util.ExpandEnv(cfg.Canvas.Token)
	}
	if token == "" {
		token = os.Getenv("CANVAS_TOKEN")
	}
	if token == "" && !*dryRunFlag {
		logging.Logf(logging.Error, "No Canvas API token provided (use -token, config, or CANVAS_TOKEN).")
		return fmt.Errorf("%w: Canvas API token", ErrMissingArgs)
	}

	finalDBConn := *dbConnStr
	if finalDBConn == "" {
		finalDBConn = os.Getenv("DB_CREDENTIALS")
	}
	finalDBConn = util.ExpandEnv(finalDBConn)

	runID := uuid.NewString()
	logging.Logf(logging.Info, "Starting run %s: operation %s, input %s", runID, cfg.Operation.Type, cfg.Input.File)
	if token != "" {
		logging.Logf(logging.Debug, "Using Canvas API at %s with token %s", cfg.Canvas.BaseURL, util.MaskToken(token))
	}

	var client canvas.Client
	if token != "" {
		client = newClientFunc(cfg.Canvas.BaseURL, token)
	}

	p := &pipeline{
		cfg:         cfg,
		client:      client,
		runID:       runID,
		dryRun:      *dryRunFlag,
		ackWarnings: *ackWarningsFlag,
		dbConnStr:   finalDBConn,
	}

	report, runErr := p.run(context.Background())
	if report != nil {
		if err := writeReport(report, cfg.Output.File, cfg.Operation.Type); err != nil {
			logging.Logf(logging.Error, "Failed to write outcome report: %v", err)
			if runErr == nil {
				runErr = err
			}
		}
	}
	if runErr != nil {
		return runErr
	}
	logging.Logf(logging.Info, "Run %s completed successfully.", runID)
	return nil
}

// Helper functions.
func anyFlagsSet(fs *flag.FlagSet) bool {
	any := false
	fs.Visit(func(*flag.Flag) { any = true })
	return any
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

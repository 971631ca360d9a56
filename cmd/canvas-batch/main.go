package main

import (
	"errors"
	"os"

	"canvas-batch/internal/app"
	"canvas-batch/internal/logging"
)

// main is the entry point for the canvas-batch application.
// It initializes and runs the AppRunner.
func main() {
	// Create a new application runner instance.
	// Dependencies are managed within the app package.
	runner := app.NewAppRunner()

	// Execute the application logic using command-line arguments.
	// os.Args[1:] excludes the program name itself.
	err := runner.Run(os.Args[1:])
	if err != nil {
		// Usage-style failures get the help text on stderr before the log line.
		if errors.Is(err, app.ErrUsage) || errors.Is(err, app.ErrConfigNotFound) || errors.Is(err, app.ErrMissingArgs) {
			runner.Usage(os.Stderr)
		}

		// Ensure the failure is visible even when the configured level
		// would suppress error output.
		if logging.GetLevel() < logging.Error {
			logging.SetLevel(logging.Error)
		}
		logging.Logf(logging.Error, "Application execution failed: %v", err)

		// Validation and batch failures already produced a report; exit
		// codes distinguish them for scripting.
		switch {
		case errors.Is(err, app.ErrValidation), errors.Is(err, app.ErrWarnings):
			os.Exit(2)
		case errors.Is(err, app.ErrBatchFailures):
			os.Exit(3)
		default:
			os.Exit(1)
		}
	}
}

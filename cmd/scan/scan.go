package scan

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/scan-io-git/scanio-agent/internal/scanner"
	"github.com/scan-io-git/scanio-agent/pkg/shared/config"
	"github.com/scan-io-git/scanio-agent/pkg/shared/logger"
)

// ErrBlockingFindings signals that the scan itself succeeded but introduced
// findings whose rules demand a failing CI status.
var ErrBlockingFindings = errors.New("new blocking findings were introduced")

// RunOptionsScan holds the arguments for the scan command.
type RunOptionsScan struct {
	Path        string
	BaselineRef string
	NoFail      bool
}

var (
	AppConfig        *config.Config
	scanOptions      RunOptionsScan
	exampleScanUsage = `  # Scanning the current directory inside CI, baseline taken from CI metadata
  scanio-agent scan

  # Scanning a specific checkout against an explicit baseline ref
  scanio-agent scan --path /path/to/repo --baseline-ref origin/main

  # Reporting new findings without failing the pipeline
  scanio-agent scan --no-fail`
)

// ScanCmd represents the scan command.
var ScanCmd = &cobra.Command{
	Use:                   "scan [--path PATH] [--baseline-ref REF] [--no-fail]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleScanUsage,
	Short:                 "Run the analysis engine on two revisions and report the new findings",
	RunE:                  runScanCommand,
}

func init() {
	ScanCmd.Flags().StringVar(&scanOptions.Path, "path", "", "repository checkout to scan (default is the working directory)")
	ScanCmd.Flags().StringVar(&scanOptions.BaselineRef, "baseline-ref", "", "ref to compare against, overrides CI metadata")
	ScanCmd.Flags().BoolVar(&scanOptions.NoFail, "no-fail", false, "exit 0 even when blocking findings are introduced")
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// runScanCommand executes the scan command.
func runScanCommand(cmd *cobra.Command, args []string) error {
	logger := logger.NewLogger(AppConfig, "core-scan")

	if err := validateScanArgs(&scanOptions, args); err != nil {
		logger.Error("invalid scan arguments", "error", err)
		return err
	}

	root := scanOptions.Path
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		root = wd
	}

	runner := scanner.New(AppConfig, logger, root, scanOptions.BaselineRef)
	summary, err := runner.Run(context.Background())
	if err != nil {
		logger.Error("scan failed", "error", err)
		return err
	}

	if summary.Blocking > 0 && !scanOptions.NoFail {
		logger.Error("blocking findings introduced", "count", summary.Blocking)
		return ErrBlockingFindings
	}
	return nil
}

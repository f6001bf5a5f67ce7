package scan

import (
	"fmt"
	"os"
)

// validateScanArgs validates the arguments provided to the scan command.
func validateScanArgs(options *RunOptionsScan, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("the scan command takes no positional arguments, use the 'path' flag")
	}

	if options.Path != "" {
		s, err := os.Stat(options.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("the target path does not exist: %v", options.Path)
		}
		if err != nil {
			return err
		}
		if !s.IsDir() {
			return fmt.Errorf("the target path is not a directory: %v", options.Path)
		}
	}

	return nil
}

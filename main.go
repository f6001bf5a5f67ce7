package main

import (
	"os"

	"github.com/scan-io-git/scanio-agent/cmd"
)

func main() {
	code := cmd.Execute()
	os.Exit(code)
}

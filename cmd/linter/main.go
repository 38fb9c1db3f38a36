// Command linter runs the locatorcalls analyzer.
package main

import (
	"github.com/MikhailRaia/files-sharing/cmd/linter/analyzer"
	"golang.org/x/tools/go/analysis/singlechecker"
)

func main() {
	singlechecker.Main(analyzer.Analyzer)
}

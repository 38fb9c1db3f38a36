package analyzer

import (
	"testing"

	"golang.org/x/tools/go/analysis/analysistest"
)

func TestAnalyzer(t *testing.T) {
	analysistest.Run(t, analysistest.TestData(), Analyzer,
		"example.com/internal/app",
		"example.com/internal/handler",
		"example.com/internal/container",
	)
}

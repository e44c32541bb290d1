// Package nostdlog reports imports of the standard log package outside
// package main. Library code logs through the shared zap logger so that
// level and output are configured in one place.
package nostdlog

import (
	"strconv"

	"golang.org/x/tools/go/analysis"
)

var Analyzer = &analysis.Analyzer{
	Name: "nostdlog",
	Doc:  "prohibits the standard log package outside package main",
	Run:  run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	if pass.Pkg.Name() == "main" {
		return nil, nil
	}

	for _, file := range pass.Files {
		for _, spec := range file.Imports {
			path, err := strconv.Unquote(spec.Path.Value)
			if err != nil || path != "log" {
				continue
			}
			pass.Reportf(spec.Pos(), "use internal/logger instead of the standard log package")
		}
	}

	return nil, nil
}

package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioNotFoundError is returned when a scenario path does not exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// Discover expands paths into scenario files. Directories contribute their
// .yaml and .yml files (not recursively) in name order; files are taken as
// given.
func Discover(paths ...string) ([]string, error) {
	var out []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return nil, &ScenarioNotFoundError{Path: path}
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, path)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, entry := range entries {
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if entry.Type().IsRegular() && (ext == ".yaml" || ext == ".yml") {
				found = append(found, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}

// SuiteResult summarizes a run of several scenario files.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure describes one scenario that did not pass.
type ScenarioFailure struct {
	Path   string   `json:"path"`
	Name   string   `json:"name,omitempty"`
	Errors []string `json:"errors"`
}

// RunAll loads and runs every scenario file in order. A scenario that fails
// to load or run counts as failed; the suite continues with the next one.
// Cancelling ctx stops before the next scenario.
func RunAll(ctx context.Context, paths []string) (*SuiteResult, error) {
	suite := &SuiteResult{}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return suite, err
		}
		suite.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			suite.fail(ScenarioFailure{Path: path, Errors: []string{err.Error()}})
			continue
		}

		result, err := Run(scenario)
		if err != nil {
			suite.fail(ScenarioFailure{
				Path:   path,
				Name:   scenario.Name,
				Errors: []string{fmt.Sprintf("scenario execution failed: %v", err)},
			})
			continue
		}
		if !result.Pass {
			suite.fail(ScenarioFailure{Path: path, Name: scenario.Name, Errors: result.Errors})
			continue
		}
		suite.Passed++
	}
	return suite, nil
}

func (s *SuiteResult) fail(f ScenarioFailure) {
	s.Failed++
	s.Failures = append(s.Failures, f)
}

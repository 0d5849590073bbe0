package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arthur-debert/kitman/pkg/errors"
)

// Exit codes, one per error kind, so scripts can tell a bad manifest from a
// flaky mirror.
const (
	ExitFailure       = 1
	ExitConfiguration = 2
	ExitNetwork       = 3
	ExitFileSystem    = 4
	ExitExternalTool  = 5
	ExitState         = 6
)

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch errors.KindOf(err) {
	case errors.KindConfiguration:
		return ExitConfiguration
	case errors.KindNetwork:
		return ExitNetwork
	case errors.KindFileSystem:
		return ExitFileSystem
	case errors.KindExternalTool:
		return ExitExternalTool
	case errors.KindStateInconsistency:
		return ExitState
	}
	return ExitFailure
}

// FormatError renders err for stderr. Error details follow on indented
// lines, sorted by key.
func FormatError(err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error: %v\n", err)

	details := errors.GetErrorDetails(err)
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s: %v\n", k, details[k])
	}
	return b.String()
}

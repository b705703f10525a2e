package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertNodeRan checks the log output within a HarnessResult to confirm that
// a specific node has completed. It keys off the executor's completion log
// line, making tests resilient to event plumbing changes.
func AssertNodeRan(t *testing.T, result *HarnessResult, nodeName string) {
	t.Helper()

	require.True(t, nodeFinishedInLog(result.LogOutput, nodeName),
		"expected node %q to finish, but no completion log line was found", nodeName)
}

// AssertNodeDidNotRun is the inverse of AssertNodeRan.
func AssertNodeDidNotRun(t *testing.T, result *HarnessResult, nodeName string) {
	t.Helper()

	require.False(t, nodeFinishedInLog(result.LogOutput, nodeName),
		"expected node %q to be skipped, but a completion log line was found", nodeName)
}

func nodeFinishedInLog(logOutput, nodeName string) bool {
	needle := "node=" + nodeName
	for _, line := range strings.Split(logOutput, "\n") {
		if !strings.Contains(line, "✅ Finished node") {
			continue
		}
		if strings.HasSuffix(line, needle) || strings.Contains(line, needle+" ") {
			return true
		}
	}
	return false
}

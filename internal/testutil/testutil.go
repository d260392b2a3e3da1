// Package testutil provides small helpers shared by this repository's
// package-level tests, mirroring the throwaway-directory convention used
// throughout the wider codebase's test suites.
package testutil

import (
	"fmt"
	"os"
	"testing"

	"github.com/golang/glog"
)

// CreateTestDir returns a freshly emptied directory under os.TempDir for
// testName, failing the test if it cannot be created.
func CreateTestDir(t *testing.T, testName string) string {
	t.Helper()
	dataDir := fmt.Sprintf("%s/confluence-test-%s", os.TempDir(), testName)
	if err := os.RemoveAll(dataDir); err != nil {
		t.Fatalf("unable to clear test directory %s: %s", dataDir, err)
	}
	if err := os.MkdirAll(dataDir, 0774); err != nil {
		t.Fatalf("unable to create test directory %s: %s", dataDir, err)
	}
	return dataDir
}

// LogTestMarker writes a banner to glog so individual test runs are easy to
// find in verbose log output.
func LogTestMarker(testName string) {
	glog.InfoDepth(1, fmt.Sprintf("\n\n==================== %s ====================\n\n", testName))
}

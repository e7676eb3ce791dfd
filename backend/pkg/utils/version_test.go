package utils

import (
	"strings"
	"testing"
)

func TestGetVersionShort(t *testing.T) {
	t.Parallel()

	version := GetVersionShort()

	if !strings.HasPrefix(version, "v"+Version) {
		t.Errorf("GetVersionShort() = %q, want prefix %q", version, "v"+Version)
	}

	if !strings.Contains(version, "(") || !strings.Contains(version, ")") {
		t.Errorf("GetVersionShort() = %q, want commit in parentheses", version)
	}

	if strings.Contains(version, "built at") {
		t.Errorf("GetVersionShort() = %q, should not contain build time", version)
	}
}

func TestGetBuildVersion(t *testing.T) {
	t.Parallel()

	if version := GetBuildVersion(); !strings.Contains(version, "built at") {
		t.Errorf("GetBuildVersion() = %q, want build time", version)
	}
}

func TestGetVCSInfoShortensCommit(t *testing.T) {
	t.Parallel()

	commit, _, modified := getVCSInfo()

	if commit != "unknown" && len(commit) > 7 {
		t.Errorf("getVCSInfo() commit = %q, want at most 7 chars", commit)
	}

	if modified != "true" && modified != "false" {
		t.Errorf("getVCSInfo() modified = %q, want true or false", modified)
	}
}

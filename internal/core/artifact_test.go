package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifact_Names(t *testing.T) {
	at := time.Date(2024, 3, 9, 7, 5, 2, 0, time.Local)
	a := NewArtifact("id-1", "/usr/bin/server.exe", KindTrap, at)

	assert.Equal(t, "server_20240309-070502.dmp", a.SnapshotName())
	assert.Equal(t, "server_20240309-070502.txt", a.ReportName())
	assert.Equal(t, "server_2024-03-09.log", LogName("server", at))
	assert.NoError(t, a.Validate())
	assert.False(t, a.Complete())
}

func TestParseArtifactName(t *testing.T) {
	at := time.Date(2024, 12, 31, 23, 59, 58, 0, time.Local)
	app, parsed, err := ParseArtifactName("/tmp/dumps/" + ArtifactBaseName("my-app", at) + SnapshotExt)
	require.NoError(t, err)
	assert.Equal(t, "my-app", app)
	assert.True(t, at.Equal(parsed))

	_, _, err = ParseArtifactName("notes.md")
	assert.Error(t, err)
}

func TestSanitizeAppName(t *testing.T) {
	tests := map[string]string{
		"server":         "server",
		"/opt/x/tool.go": "tool",
		"a b/c":          "c",
		"we ird":         "we-ird",
		"":               "app",
		".hidden":        ".hidden",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeAppName(in), "input %q", in)
	}
}

func TestArtifact_Validate(t *testing.T) {
	assert.Error(t, (&Artifact{}).Validate())
	assert.Error(t, (&Artifact{ID: "x"}).Validate())
	assert.Error(t, (&Artifact{ID: "x", App: "a"}).Validate())
}

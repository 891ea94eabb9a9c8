package snapshot

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/testutil"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		ID:          "7d1c",
		App:         "svc",
		CreatedAt:   time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Detail:      string(core.DetailNormal),
		Kind:        core.KindTrap.String(),
		Code:        uint32(core.CodeAccessViolation),
		CodeName:    core.CodeAccessViolation.Name(),
		HasAddr:     true,
		PID:         4242,
		ThreadID:    4243,
		GoroutineID: 1,
		PCs:         []uint64{0x401000, 0x402000},
		Frames: []Frame{
			{PC: 0x401000, Function: "main.crash", File: "main.go", Line: 12},
			{PC: 0x402000, Function: "main.main", File: "main.go", Line: 30},
		},
		Runtime: RuntimeInfo{GoVersion: "go1.24.2", GOOS: "linux", GOARCH: "amd64"},
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	snap := sampleSnapshot()

	manifest, err := Encode(&buf, snap, Entry{Path: goroutinesArchivePath, Data: []byte("goroutine 1 [running]:\n")})
	require.NoError(t, err)
	assert.Len(t, manifest.Files, 2)

	dump, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, dump.Manifest.Version)
	assert.Equal(t, "svc", dump.Manifest.App)
	assert.Equal(t, snap.Frames, dump.Snapshot.Frames)
	assert.Equal(t, snap.PCs, dump.Snapshot.PCs)
	assert.Equal(t, "ACCESS_VIOLATION", dump.Snapshot.CodeName)
	assert.True(t, dump.Snapshot.CreatedAt.Equal(snap.CreatedAt))
	assert.Equal(t, "goroutine 1 [running]:\n", string(dump.Goroutines))
	assert.False(t, dump.HasHeap)
}

func TestEncode_Validation(t *testing.T) {
	_, err := Encode(io.Discard, nil)
	assert.Error(t, err)

	_, err = Encode(io.Discard, sampleSnapshot(), Entry{Path: manifestArchivePath})
	assert.Error(t, err)

	_, err = Encode(io.Discard, sampleSnapshot(), Entry{Path: "../escape"})
	assert.Error(t, err)
}

func rawArchive(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, data := range entries {
		require.NoError(t, writeTarEntry(tw, name, data, 0o600))
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestDecode_RejectsTampering(t *testing.T) {
	var buf bytes.Buffer
	_, err := Encode(&buf, sampleSnapshot())
	require.NoError(t, err)

	// Re-pack with a modified snapshot record and the original manifest.
	dump, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	manifestBytes, err := encodeManifest(dump.Manifest)
	require.NoError(t, err)

	tampered := rawArchive(t, map[string][]byte{
		snapshotArchivePath: []byte("not the record"),
		manifestArchivePath: manifestBytes,
	})
	_, err = Decode(bytes.NewReader(tampered))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestDecode_RejectsBadArchives(t *testing.T) {
	tests := []struct {
		name    string
		entries map[string][]byte
		want    string
	}{
		{"missing manifest", map[string][]byte{snapshotArchivePath: {0x80}}, "missing manifest.json"},
		{"traversal", map[string][]byte{"../x": {1}}, "path traversal"},
		{"bad version", map[string][]byte{manifestArchivePath: []byte(`{"version":99}`)}, "unsupported dump version"},
		{"missing record", map[string][]byte{manifestArchivePath: []byte(`{"version":1}`)}, "missing required entry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(rawArchive(t, tt.entries)))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := Decode(bytes.NewReader([]byte("plain text")))
	assert.Error(t, err)
}

func encodingProvider() *testutil.FakeProvider {
	p := testutil.NewFakeProvider()
	p.SnapshotFunc = func(w io.Writer, req core.SnapshotRequest) error {
		snap := sampleSnapshot()
		snap.ID = req.ID
		snap.App = req.App
		snap.CreatedAt = req.CreatedAt
		_, err := Encode(w, snap)
		return err
	}
	return p
}

func TestWriter_Write(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(WriterConfig{Dir: dir}, encodingProvider(), nil)
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)

	path, err := w.Write(core.SnapshotRequest{ID: "a1", App: "/usr/bin/svc.exe", CreatedAt: at})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "svc_20260314-092653.dmp"), path)

	dump, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "a1", dump.Snapshot.ID)
	assert.Equal(t, path, dump.Path)
}

func TestWriter_WriteDefaultsDetail(t *testing.T) {
	p := testutil.NewFakeProvider()
	w := NewWriter(WriterConfig{Dir: t.TempDir()}, p, nil)

	_, err := w.Write(core.SnapshotRequest{ID: "a1", App: "svc"})
	require.NoError(t, err)
	reqs := p.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, core.DetailNormal, reqs[0].Detail)
	assert.False(t, reqs[0].CreatedAt.IsZero())
}

func TestWriter_SameSecondCollision(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(WriterConfig{Dir: dir}, testutil.NewFakeProvider(), nil)
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)

	_, err := w.Write(core.SnapshotRequest{ID: "a1", App: "svc", CreatedAt: at})
	require.NoError(t, err)

	_, err = w.Write(core.SnapshotRequest{ID: "a2", App: "svc", CreatedAt: at})
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatDegraded))

	// The first file is untouched.
	content := testutil.ReadFile(t, filepath.Join(dir, "svc_20260314-092653.dmp"))
	assert.Equal(t, "snapshot:a1", content)
}

func TestWriter_RemovesPartialFile(t *testing.T) {
	dir := t.TempDir()
	p := testutil.NewFakeProvider()
	p.SnapshotFunc = func(w io.Writer, _ core.SnapshotRequest) error {
		_, _ = w.Write([]byte("half"))
		return errors.New("disk full")
	}
	w := NewWriter(WriterConfig{Dir: dir}, p, nil)

	_, err := w.Write(core.SnapshotRequest{ID: "a1", App: "svc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, testutil.FilesWithSuffix(t, dir, core.SnapshotExt))
}

func TestWriter_Retention(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(WriterConfig{Dir: dir, MaxFiles: 2}, testutil.NewFakeProvider(), nil)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.Local)

	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		path, err := w.Write(core.SnapshotRequest{ID: "x", App: "svc", CreatedAt: at})
		require.NoError(t, err)
		require.NoError(t, os.Chtimes(path, at, at))
	}

	assert.Equal(t, []string{"svc_20260314-090002.dmp", "svc_20260314-090003.dmp"},
		testutil.FilesWithSuffix(t, dir, core.SnapshotExt))
}

func TestLoadLatest(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadLatest(dir)
	require.Error(t, err)

	w := NewWriter(WriterConfig{Dir: dir}, encodingProvider(), nil)
	older := time.Date(2026, 3, 14, 9, 0, 0, 0, time.Local)
	newer := older.Add(time.Minute)
	p1, err := w.Write(core.SnapshotRequest{ID: "old", App: "svc", CreatedAt: older})
	require.NoError(t, err)
	require.NoError(t, os.Chtimes(p1, older, older))
	p2, err := w.Write(core.SnapshotRequest{ID: "new", App: "svc", CreatedAt: newer})
	require.NoError(t, err)
	require.NoError(t, os.Chtimes(p2, newer, newer))

	dump, err := LoadLatest(dir)
	require.NoError(t, err)
	assert.Equal(t, "new", dump.Snapshot.ID)

	m, err := Validate(p1)
	require.NoError(t, err)
	assert.Equal(t, "old", m.ID)
}

func TestLastErrorText(t *testing.T) {
	assert.Equal(t, "", LastErrorText(nil))
	assert.Equal(t, "plain", LastErrorText(errors.New("plain")))

	_, err := os.Open(filepath.Join(t.TempDir(), "missing"))
	assert.Contains(t, LastErrorText(err), "errno 2")
}

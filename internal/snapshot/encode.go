package snapshot

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode writes snap and the extra entries to w as a gzip-compressed tar
// archive. The manifest is written last and lists every other entry with
// its checksum.
func Encode(w io.Writer, snap *Snapshot, extra ...Entry) (*Manifest, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot is required")
	}
	if snap.Version == 0 {
		snap.Version = FormatVersion
	}

	gzWriter := gzip.NewWriter(w)
	tarWriter := tar.NewWriter(gzWriter)

	manifest := &Manifest{
		Version:   FormatVersion,
		ID:        snap.ID,
		App:       snap.App,
		CreatedAt: snap.CreatedAt.UTC(),
		Kind:      snap.Kind,
		Detail:    snap.Detail,
		Files:     make([]FileEntry, 0, len(extra)+1),
	}

	record, err := msgpack.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot record: %w", err)
	}
	if err := addBytesToArchive(tarWriter, manifest, snapshotArchivePath, record, 0o600); err != nil {
		return nil, err
	}

	for _, e := range extra {
		if e.Path == manifestArchivePath || e.Path == snapshotArchivePath {
			return nil, fmt.Errorf("reserved archive path: %s", e.Path)
		}
		mode := e.Mode
		if mode == 0 {
			mode = 0o600
		}
		if err := addBytesToArchive(tarWriter, manifest, e.Path, e.Data, mode); err != nil {
			return nil, err
		}
	}

	manifestBytes, err := encodeManifest(manifest)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	if err := writeTarEntry(tarWriter, manifestArchivePath, manifestBytes, 0o600); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}

	if err := tarWriter.Close(); err != nil {
		return nil, fmt.Errorf("closing tar stream: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip stream: %w", err)
	}
	return manifest, nil
}

func addBytesToArchive(tw *tar.Writer, manifest *Manifest, archivePath string, data []byte, mode int64) error {
	cleanPath, err := cleanArchivePath(archivePath)
	if err != nil {
		return fmt.Errorf("invalid archive path: %w", err)
	}

	if err := writeTarEntry(tw, cleanPath, data, mode); err != nil {
		return fmt.Errorf("writing archive entry %s: %w", cleanPath, err)
	}

	hash := sha256.Sum256(data)
	manifest.Files = append(manifest.Files, FileEntry{
		Path:   cleanPath,
		SHA256: hex.EncodeToString(hash[:]),
		Size:   int64(len(data)),
		Mode:   mode,
	})
	return nil
}

func writeTarEntry(tw *tar.Writer, name string, data []byte, mode int64) error {
	header := &tar.Header{
		Name:     filepath.ToSlash(name),
		Mode:     mode,
		Size:     int64(len(data)),
		ModTime:  time.Now(),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}

package snapshot

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

type archivedFile struct {
	Path string
	Data []byte
	Mode int64
}

// Open reads, validates and decodes the dump at path.
func Open(path string) (*Dump, error) {
	if path == "" {
		return nil, fmt.Errorf("input path is required")
	}
	file, err := os.Open(path) // #nosec G304 -- caller controls path
	if err != nil {
		return nil, fmt.Errorf("opening dump: %w", err)
	}
	defer file.Close()

	dump, err := Decode(file)
	if err != nil {
		return nil, err
	}
	dump.Path = path
	return dump, nil
}

// Decode reads a dump archive from r and verifies every manifest checksum.
func Decode(r io.Reader) (*Dump, error) {
	archiveFiles, err := readArchiveFiles(r)
	if err != nil {
		return nil, err
	}

	manifestFile, ok := archiveFiles[manifestArchivePath]
	if !ok {
		return nil, fmt.Errorf("dump is missing %s", manifestArchivePath)
	}
	manifest, err := decodeManifest(manifestFile.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if err := validateArchiveAgainstManifest(manifest, archiveFiles); err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := msgpack.Unmarshal(archiveFiles[snapshotArchivePath].Data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot record: %w", err)
	}

	dump := &Dump{
		Manifest: manifest,
		Snapshot: &snap,
	}
	if g, ok := archiveFiles[goroutinesArchivePath]; ok {
		dump.Goroutines = g.Data
	}
	_, dump.HasHeap = archiveFiles[heapArchivePath]
	return dump, nil
}

// Validate checks the archive structure and checksums of the dump at path.
func Validate(path string) (*Manifest, error) {
	dump, err := Open(path)
	if err != nil {
		return nil, err
	}
	return dump.Manifest, nil
}

func readArchiveFiles(r io.Reader) (map[string]archivedFile, error) {
	gzReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	files := make(map[string]archivedFile)

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar entry: %w", err)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			continue
		case tar.TypeReg:
		default:
			return nil, fmt.Errorf("unsupported tar entry type %d for %s", header.Typeflag, header.Name)
		}

		entryPath, cleanErr := cleanArchivePath(filepath.ToSlash(header.Name))
		if cleanErr != nil {
			return nil, fmt.Errorf("invalid archive path %q: %w", header.Name, cleanErr)
		}
		if header.Size > maxEntrySize {
			return nil, fmt.Errorf("archive entry %s exceeds %d bytes", entryPath, maxEntrySize)
		}

		var buf bytes.Buffer
		if _, err := io.Copy(&buf, io.LimitReader(tarReader, maxEntrySize)); err != nil {
			return nil, fmt.Errorf("reading tar entry %s: %w", entryPath, err)
		}

		files[entryPath] = archivedFile{
			Path: entryPath,
			Data: buf.Bytes(),
			Mode: header.Mode,
		}
	}

	return files, nil
}

func validateArchiveAgainstManifest(manifest *Manifest, archiveFiles map[string]archivedFile) error {
	for _, fileEntry := range manifest.Files {
		archiveFile, ok := archiveFiles[fileEntry.Path]
		if !ok {
			return fmt.Errorf("manifest entry not found in archive: %s", fileEntry.Path)
		}

		if int64(len(archiveFile.Data)) != fileEntry.Size {
			return fmt.Errorf("size mismatch for %s: manifest=%d archive=%d", fileEntry.Path, fileEntry.Size, len(archiveFile.Data))
		}

		hash := sha256.Sum256(archiveFile.Data)
		if hex.EncodeToString(hash[:]) != fileEntry.SHA256 {
			return fmt.Errorf("checksum mismatch for %s", fileEntry.Path)
		}
	}

	if _, ok := archiveFiles[snapshotArchivePath]; !ok {
		return fmt.Errorf("dump is missing required entry: %s", snapshotArchivePath)
	}

	return nil
}

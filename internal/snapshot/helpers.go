package snapshot

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

func cleanArchivePath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty archive path")
	}
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("absolute archive path is not allowed: %s", p)
	}
	clean := filepath.ToSlash(filepath.Clean(strings.TrimPrefix(p, "./")))
	if clean == "." || clean == "" {
		return "", fmt.Errorf("invalid archive path: %s", p)
	}
	if clean == ".." || strings.HasPrefix(clean, "../") || strings.Contains(clean, `..\`) {
		return "", fmt.Errorf("path traversal detected: %s", p)
	}
	return clean, nil
}

func sortFileEntries(entries []FileEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
}

func encodeManifest(manifest *Manifest) ([]byte, error) {
	sortFileEntries(manifest.Files)
	return json.MarshalIndent(manifest, "", "  ")
}

func decodeManifest(data []byte) (*Manifest, error) {
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, err
	}
	if manifest.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported dump version: %d", manifest.Version)
	}
	return &manifest, nil
}

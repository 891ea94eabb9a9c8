package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
)

func TestCreateExclusive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dumps")

	f, err := CreateExclusive(dir, "app_20240101-000000.dmp", 0o600)
	if err != nil {
		t.Fatalf("CreateExclusive: %v", err)
	}
	if _, err := f.Write([]byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	_, err = CreateExclusive(dir, "app_20240101-000000.dmp", 0o600)
	if !errors.Is(err, os.ErrExist) {
		t.Fatalf("expected ErrExist on second create, got %v", err)
	}
}

func TestCreateExclusive_RejectsPaths(t *testing.T) {
	for _, name := range []string{"", "../x.dmp", "a/b.dmp"} {
		if _, err := CreateExclusive(t.TempDir(), name, 0o600); err == nil {
			t.Errorf("expected error for %q", name)
		}
	}
}

func TestAppendOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app_2024-01-01.log")
	for _, chunk := range []string{"first\n", "second\n"} {
		if err := AppendOnce(path, []byte(chunk), 0o600); err != nil {
			t.Fatalf("AppendOnce: %v", err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "first\nsecond\n" {
		t.Errorf("content = %q", data)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.txt")
	if err := WriteFileAtomic(path, []byte("one"), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("two"), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic overwrite: %v", err)
	}
	data, err := ReadFileScoped(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "two" {
		t.Errorf("content = %q", data)
	}
}

func TestWriteFileAtomic_Perms(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteFileAtomic(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("perms = %v, want 0600", info.Mode().Perm())
	}
}

func TestWriteFileAtomic_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = WriteFileAtomic(path, []byte(fmt.Sprintf("writer %d", n)), 0o600)
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "writer ") {
		t.Errorf("content = %q, want one whole write", data)
	}
}

func TestWriteFileAtomic_ParentIsFile(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(parent, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(filepath.Join(parent, "config.yaml"), []byte("x"), 0o600); err == nil {
		t.Fatal("expected error when the parent is a regular file")
	}
}

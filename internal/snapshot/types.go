package snapshot

import (
	"time"
)

const (
	// FormatVersion is the current dump format version.
	FormatVersion = 1

	manifestArchivePath   = "manifest.json"
	snapshotArchivePath   = "snapshot.msgpack"
	goroutinesArchivePath = "goroutines.txt"
	heapArchivePath       = "heap.dump"

	// maxEntrySize bounds a single archive entry when reading.
	maxEntrySize = 1 << 30
)

// FileEntry describes one archived file.
type FileEntry struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
	Mode   int64  `json:"mode"`
}

// Manifest is the metadata file stored at the archive root.
type Manifest struct {
	Version   int         `json:"version"`
	ID        string      `json:"id"`
	App       string      `json:"app"`
	CreatedAt time.Time   `json:"created_at"`
	Kind      string      `json:"kind"`
	Detail    string      `json:"detail"`
	Files     []FileEntry `json:"files"`
}

// Entry is an extra file added to the archive next to the snapshot record.
type Entry struct {
	Path string
	Data []byte
	Mode int64
}

// Snapshot is the structured process state at the moment of a fault.
type Snapshot struct {
	Version   int       `msgpack:"version"`
	ID        string    `msgpack:"id"`
	App       string    `msgpack:"app"`
	CreatedAt time.Time `msgpack:"created_at"`
	Detail    string    `msgpack:"detail"`
	Kind      string    `msgpack:"kind"`
	Code      uint32    `msgpack:"code,omitempty"`
	CodeName  string    `msgpack:"code_name,omitempty"`
	SubCode   string    `msgpack:"sub_code,omitempty"`
	FaultAddr uint64    `msgpack:"fault_addr,omitempty"`
	HasAddr   bool      `msgpack:"has_addr,omitempty"`
	Access    string    `msgpack:"access,omitempty"`
	Signal    string    `msgpack:"signal,omitempty"`
	Value     string    `msgpack:"value,omitempty"`
	Manual    bool      `msgpack:"manual"`
	Contract  *Contract `msgpack:"contract,omitempty"`

	PID         int      `msgpack:"pid"`
	ThreadID    int      `msgpack:"thread_id"`
	GoroutineID uint64   `msgpack:"goroutine_id"`
	PCs         []uint64 `msgpack:"pcs"`
	Frames      []Frame  `msgpack:"frames"`

	Modules   []Module          `msgpack:"modules,omitempty"`
	Regions   []Region          `msgpack:"regions,omitempty"`
	Runtime   RuntimeInfo       `msgpack:"runtime"`
	Memory    MemStats          `msgpack:"memory"`
	Resources Resources         `msgpack:"resources"`
	Process   *ProcessInfo      `msgpack:"process,omitempty"`
	Env       map[string]string `msgpack:"env,omitempty"`
	Errors    []string          `msgpack:"errors,omitempty"`
}

// Contract mirrors core.ContractViolation.
type Contract struct {
	Expression string `msgpack:"expression"`
	Function   string `msgpack:"function"`
	File       string `msgpack:"file"`
	Line       int    `msgpack:"line"`
}

// Frame is one symbolized program counter.
type Frame struct {
	PC       uint64 `msgpack:"pc"`
	Function string `msgpack:"function,omitempty"`
	File     string `msgpack:"file,omitempty"`
	Line     int    `msgpack:"line,omitempty"`
}

// Module is a linked Go module from the build info.
type Module struct {
	Path    string `msgpack:"path"`
	Version string `msgpack:"version,omitempty"`
	Sum     string `msgpack:"sum,omitempty"`
	Main    bool   `msgpack:"main,omitempty"`
}

// Region is one mapped memory range of the process.
type Region struct {
	Start uint64 `msgpack:"start"`
	End   uint64 `msgpack:"end"`
	Perms string `msgpack:"perms"`
	Path  string `msgpack:"path,omitempty"`
}

// RuntimeInfo describes the Go runtime hosting the process.
type RuntimeInfo struct {
	GoVersion    string `msgpack:"go_version"`
	GOOS         string `msgpack:"goos"`
	GOARCH       string `msgpack:"goarch"`
	NumCPU       int    `msgpack:"num_cpu"`
	GOMAXPROCS   int    `msgpack:"gomaxprocs"`
	NumGoroutine int    `msgpack:"num_goroutine"`
	Executable   string `msgpack:"executable,omitempty"`
}

// MemStats is a subset of runtime.MemStats.
type MemStats struct {
	HeapAlloc    uint64 `msgpack:"heap_alloc"`
	HeapInuse    uint64 `msgpack:"heap_inuse"`
	HeapSys      uint64 `msgpack:"heap_sys"`
	StackInuse   uint64 `msgpack:"stack_inuse"`
	Sys          uint64 `msgpack:"sys"`
	NumGC        uint32 `msgpack:"num_gc"`
	PauseTotalNs uint64 `msgpack:"pause_total_ns"`
}

// Resources describes OS resources held by the process.
type Resources struct {
	OpenFDs int `msgpack:"open_fds"`
	MaxFDs  int `msgpack:"max_fds"`
}

// ProcessInfo is what the OS reports about the process.
type ProcessInfo struct {
	Name       string  `msgpack:"name,omitempty"`
	Cmdline    string  `msgpack:"cmdline,omitempty"`
	Cwd        string  `msgpack:"cwd,omitempty"`
	RSS        uint64  `msgpack:"rss"`
	VMS        uint64  `msgpack:"vms"`
	NumThreads int32   `msgpack:"num_threads"`
	CPUPercent float64 `msgpack:"cpu_percent"`
	CreateTime int64   `msgpack:"create_time"`
}

// Dump is a decoded and validated .dmp archive.
type Dump struct {
	Path       string
	Manifest   *Manifest
	Snapshot   *Snapshot
	Goroutines []byte
	HasHeap    bool
}

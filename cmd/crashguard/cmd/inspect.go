package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/snapshot"
	"github.com/hugo-lorenzo-mato/crashguard/internal/sysinfo"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [dump]",
	Short: "Validate and print a .dmp snapshot",
	Long: `Validate the checksums of a .dmp snapshot and print its contents.
Without an argument the most recent dump in the artifact directory is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

var (
	inspectFormat     string
	inspectGoroutines bool
	inspectList       bool
)

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVarP(&inspectFormat, "format", "f", core.OutputText, "Output format: text | json | yaml")
	inspectCmd.Flags().BoolVar(&inspectGoroutines, "goroutines", false, "Include the all-goroutine stack text")
	inspectCmd.Flags().BoolVar(&inspectList, "list", false, "List the dumps in the artifact directory")
}

// dumpView is the structured form printed by --format json|yaml.
type dumpView struct {
	Path       string       `json:"path" yaml:"path"`
	ID         string       `json:"id" yaml:"id"`
	App        string       `json:"app" yaml:"app"`
	CreatedAt  time.Time    `json:"created_at" yaml:"created_at"`
	Kind       string       `json:"kind" yaml:"kind"`
	Code       string       `json:"code,omitempty" yaml:"code,omitempty"`
	SubCode    string       `json:"sub_code,omitempty" yaml:"sub_code,omitempty"`
	FaultAddr  string       `json:"fault_addr,omitempty" yaml:"fault_addr,omitempty"`
	Access     string       `json:"access,omitempty" yaml:"access,omitempty"`
	Signal     string       `json:"signal,omitempty" yaml:"signal,omitempty"`
	Value      string       `json:"value,omitempty" yaml:"value,omitempty"`
	Manual     bool         `json:"manual" yaml:"manual"`
	PID        int          `json:"pid" yaml:"pid"`
	ThreadID   int          `json:"thread_id" yaml:"thread_id"`
	Goroutine  uint64       `json:"goroutine" yaml:"goroutine"`
	Frames     []frameView  `json:"frames" yaml:"frames"`
	Runtime    runtimeView  `json:"runtime" yaml:"runtime"`
	HeapAlloc  uint64       `json:"heap_alloc" yaml:"heap_alloc"`
	OpenFDs    int          `json:"open_fds" yaml:"open_fds"`
	Process    *processView `json:"process,omitempty" yaml:"process,omitempty"`
	Files      []fileView   `json:"files" yaml:"files"`
	Errors     []string     `json:"errors,omitempty" yaml:"errors,omitempty"`
	Goroutines string       `json:"goroutines,omitempty" yaml:"goroutines,omitempty"`
}

type frameView struct {
	PC       string `json:"pc" yaml:"pc"`
	Function string `json:"function,omitempty" yaml:"function,omitempty"`
	File     string `json:"file,omitempty" yaml:"file,omitempty"`
	Line     int    `json:"line,omitempty" yaml:"line,omitempty"`
}

type runtimeView struct {
	GoVersion string `json:"go_version" yaml:"go_version"`
	OS        string `json:"os" yaml:"os"`
	Arch      string `json:"arch" yaml:"arch"`
	NumCPU    int    `json:"num_cpu" yaml:"num_cpu"`
}

type processView struct {
	Name       string  `json:"name,omitempty" yaml:"name,omitempty"`
	Cmdline    string  `json:"cmdline,omitempty" yaml:"cmdline,omitempty"`
	RSS        uint64  `json:"rss" yaml:"rss"`
	NumThreads int32   `json:"num_threads" yaml:"num_threads"`
	CPUPercent float64 `json:"cpu_percent" yaml:"cpu_percent"`
}

type fileView struct {
	Path   string `json:"path" yaml:"path"`
	Size   int64  `json:"size" yaml:"size"`
	SHA256 string `json:"sha256" yaml:"sha256"`
}

func runInspect(_ *cobra.Command, args []string) error {
	if inspectList {
		return listDumps(out, cfg.Artifact.Dir)
	}
	if err := validateFormat(inspectFormat); err != nil {
		return err
	}

	var (
		dump *snapshot.Dump
		err  error
	)
	if len(args) == 1 {
		dump, err = snapshot.Open(args[0])
	} else {
		dump, err = snapshot.LoadLatest(cfg.Artifact.Dir)
	}
	if err != nil {
		return err
	}

	view := newDumpView(dump, inspectGoroutines)
	if inspectFormat == core.OutputText {
		printDump(out, view)
		return nil
	}
	return encode(out, inspectFormat, view)
}

func newDumpView(d *snapshot.Dump, goroutines bool) dumpView {
	s := d.Snapshot
	v := dumpView{
		Path:      d.Path,
		ID:        s.ID,
		App:       s.App,
		CreatedAt: s.CreatedAt,
		Kind:      s.Kind,
		SubCode:   s.SubCode,
		Access:    s.Access,
		Signal:    s.Signal,
		Value:     s.Value,
		Manual:    s.Manual,
		PID:       s.PID,
		ThreadID:  s.ThreadID,
		Goroutine: s.GoroutineID,
		Runtime: runtimeView{
			GoVersion: s.Runtime.GoVersion,
			OS:        s.Runtime.GOOS,
			Arch:      s.Runtime.GOARCH,
			NumCPU:    s.Runtime.NumCPU,
		},
		HeapAlloc: s.Memory.HeapAlloc,
		OpenFDs:   s.Resources.OpenFDs,
		Errors:    s.Errors,
	}
	if s.Code != 0 {
		v.Code = core.Code(s.Code).String()
	}
	if s.HasAddr {
		v.FaultAddr = fmt.Sprintf("0x%X", s.FaultAddr)
	}
	for _, f := range s.Frames {
		v.Frames = append(v.Frames, frameView{
			PC:       fmt.Sprintf("0x%X", f.PC),
			Function: f.Function,
			File:     f.File,
			Line:     f.Line,
		})
	}
	if p := s.Process; p != nil {
		v.Process = &processView{
			Name:       p.Name,
			Cmdline:    p.Cmdline,
			RSS:        p.RSS,
			NumThreads: p.NumThreads,
			CPUPercent: p.CPUPercent,
		}
	}
	for _, f := range d.Manifest.Files {
		v.Files = append(v.Files, fileView{Path: f.Path, Size: f.Size, SHA256: f.SHA256})
	}
	if goroutines {
		v.Goroutines = string(d.Goroutines)
	}
	return v
}

func printDump(w io.Writer, v dumpView) {
	headerColor.Fprintf(w, "%s\n", filepath.Base(v.Path))
	fmt.Fprintf(w, "  id:        %s\n", v.ID)
	fmt.Fprintf(w, "  app:       %s\n", v.App)
	fmt.Fprintf(w, "  created:   %s\n", v.CreatedAt.Local().Format(time.ANSIC))
	fmt.Fprintf(w, "  fault:     %s\n", faultColor.Sprint(v.Kind))
	if v.Code != "" {
		fmt.Fprintf(w, "  code:      %s\n", v.Code)
	}
	if v.SubCode != "" {
		fmt.Fprintf(w, "  sub-code:  %s\n", v.SubCode)
	}
	if v.FaultAddr != "" {
		access := v.Access
		if access == "" {
			access = "access"
		}
		fmt.Fprintf(w, "  address:   %s (%s)\n", v.FaultAddr, access)
	}
	if v.Signal != "" {
		fmt.Fprintf(w, "  signal:    %s\n", v.Signal)
	}
	if v.Value != "" {
		fmt.Fprintf(w, "  value:     %s\n", v.Value)
	}
	if v.Manual {
		fmt.Fprintf(w, "  manual:    yes\n")
	}
	fmt.Fprintf(w, "  process:   pid %d, thread %d, goroutine %d\n", v.PID, v.ThreadID, v.Goroutine)
	if v.Process != nil {
		fmt.Fprintf(w, "             %s, rss %s, threads %d\n", v.Process.Name, sysinfo.FormatSize(v.Process.RSS), v.Process.NumThreads)
	}
	fmt.Fprintf(w, "  runtime:   %s %s/%s, %d CPUs\n", v.Runtime.GoVersion, v.Runtime.OS, v.Runtime.Arch, v.Runtime.NumCPU)
	fmt.Fprintf(w, "  heap:      %s, open fds %d\n", sysinfo.FormatSize(v.HeapAlloc), v.OpenFDs)

	headerColor.Fprintln(w, "\nCall stack:")
	for i, f := range v.Frames {
		fmt.Fprintf(w, "%02d. (%s) %s\n", i, f.PC, f.Function)
		if f.File != "" {
			fmt.Fprintf(w, "      %s\n", dimColor.Sprintf("%s:%d", f.File, f.Line))
		}
	}

	if len(v.Errors) > 0 {
		headerColor.Fprintln(w, "\nDegraded:")
		for _, e := range v.Errors {
			warnColor.Fprintf(w, "  %s\n", e)
		}
	}

	headerColor.Fprintln(w, "\nEntries:")
	for _, f := range v.Files {
		fmt.Fprintf(w, "  %-18s %10d  %s\n", f.Path, f.Size, dimColor.Sprint(f.SHA256[:min(12, len(f.SHA256))]))
	}

	if v.Goroutines != "" {
		headerColor.Fprintln(w, "\nGoroutines:")
		fmt.Fprint(w, v.Goroutines)
	}
}

func listDumps(w io.Writer, dir string) error {
	dumps, err := snapshot.List(dir)
	if err != nil {
		return err
	}
	if len(dumps) == 0 {
		if !quiet {
			fmt.Fprintf(w, "No dumps in %s\n", dir)
		}
		return nil
	}
	for _, path := range dumps {
		name := filepath.Base(path)
		app, at, err := core.ParseArtifactName(name)
		if err != nil || quiet {
			fmt.Fprintln(w, path)
			continue
		}
		fmt.Fprintf(w, "%s  %-20s %s\n", at.Format("2006-01-02 15:04:05"), app, pathColor.Sprint(path))
	}
	return nil
}

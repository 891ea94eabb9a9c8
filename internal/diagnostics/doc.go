// Package diagnostics owns the process-wide fault registry and the dispatch
// pipeline every hook funnels into.
//
// The package implements four components:
//
//   - Registry: installs itself into the hook table, serializes fault
//     handling behind one lock, writes the binary snapshot and the text
//     report, then terminates the process unless execution is continued.
//
//   - Emulate: raises each fault kind deliberately so the pipeline can be
//     exercised end to end.
//
//   - Fatal output: routes unrecoverable runtime failures to a log file.
//
//   - Watchdog: runs a command under a deadline, samples its resource use
//     and reports the snapshots it left behind.
package diagnostics

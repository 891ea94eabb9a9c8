// Package sysinfo probes the host for the system section of fault reports
// and the process section of snapshots.
//
// Every probe is best effort: a failed probe is recorded in
// core.SystemInfo.Errors and the remaining fields are still filled.
package sysinfo

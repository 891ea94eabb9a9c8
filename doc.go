// Package crashguard intercepts process faults and leaves a post-mortem
// trail behind: a binary snapshot (<app>_<YYYYMMDD-HHMMSS>.dmp) and a text
// report with the fault summary, the symbolized call stack with annotated
// locals and a description of the host.
//
// Typical use installs every hook at startup and runs risky work under
// Protect or Go:
//
//	if err := crashguard.Configure(crashguard.WithDir("/var/crash")); err != nil {
//		log.Fatal(err)
//	}
//	if err := crashguard.Install(0); err != nil {
//		log.Fatal(err)
//	}
//	defer crashguard.Uninstall()
//
//	crashguard.Go(serve)
//
// A fault that reaches a hook is reported once per process; the process
// then exits with status 1 unless the report callback calls
// ContinueExecution. GenerateReport writes the same artifacts on demand and
// keeps running.
package crashguard

package config

// DefaultConfigYAML contains the default configuration YAML content.
// `crashguard config init` writes it and the loader defaults mirror it.
const DefaultConfigYAML = `# crashguard configuration
#
# Values not specified here use the built-in defaults. Every key can be
# overridden with a CRASHGUARD_ environment variable, for example
# CRASHGUARD_ARTIFACT_DIR=/var/crash.

log:
  level: info
  # auto | text | json
  format: auto

# Hooks to install. Empty installs all of them.
# trap, unhandled, pure-call, allocation, buffer-overrun, invalid-argument,
# sigabrt, sigfpe, sigill, sigint, sigsegv, sigterm
hooks: []

artifact:
  dir: crashdumps
  # Empty uses the executable base name.
  app_name: ""
  # Number of .dmp files kept. 0 keeps everything.
  max_files: 10
  # normal | full (full adds a runtime heap dump)
  detail: normal
  # alongside writes <app>_<timestamp>.txt next to the dump,
  # append adds the report to <app>_<date>.log
  report_mode: alongside
  include_env: true
  include_goroutines: true

report:
  max_depth: 64
  skip: 0
  system_info: true

# Unrecoverable runtime failures are written to <app>_fatal.log.
fatal_output:
  enabled: false

watchdog:
  # 0s waits forever
  timeout: 0s
  grace: 5s
`

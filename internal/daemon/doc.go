// Package daemon ties the worker pool, the HTTP query surface, and the
// IPC-facing control operations into a single-instance background process.
// A flock-guarded lock file under the log directory prevents two daemons
// from sharing one ledger.
package daemon

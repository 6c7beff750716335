// Package stage defines the pipeline stages and job lifecycle statuses
// shared by the ledger, the worker pool, and the CLI.
package stage

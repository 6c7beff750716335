// Package testsupport provides shared fixtures for tests: temp-dir configs,
// ledger stores, and stub tool binaries that fake the pipeline.
package testsupport

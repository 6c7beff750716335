// Package api defines the transport DTOs shared by the HTTP query surface
// and the IPC control socket, plus converters from ledger records.
//
// The types here are deliberately flat and JSON-tagged so both transports
// serve identical payloads. Conversion helpers live in convert.go; the
// read-only Service in service.go wraps a ledger reader so handlers never
// touch store internals directly.
package api

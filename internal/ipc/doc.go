// Package ipc exposes daemon control via JSON-RPC over a Unix domain
// socket. The CLI is the only intended client; payload DTOs are shared
// with the HTTP surface through the api package so both report jobs
// identically.
package ipc

// Package pool runs the bounded worker slots that drain the ledger queue,
// and exposes the pause, resume, and kill controls that act on the live
// tool processes workers own.
package pool

// Package runner executes pipeline stages by driving the external tool
// clients, persisting stage artifacts and transitions through the ledger.
package runner

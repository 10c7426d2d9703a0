// Package storage persists granomail's state between runs.
//
// It currently supports:
//   - The notification ledger (load at run start, atomic save at run end)
//   - Send-audit appends (one entry per delivery attempt)
package storage

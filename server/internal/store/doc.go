// Package store keeps the append-only alert event history. Memory holds it in
// process; SQLite persists it to a database file. Both satisfy
// risk.AlertHistory and the read queries the REST API needs.
package store

// Package catalog implements the broadcast catalog on PostgreSQL.
//
// The catalog never participates in multi-row transactions: every state
// transition issues at most one insert and one single-row update, each atomic
// on its own.
package catalog

// Package postgres archives raised alerts in PostgreSQL and serves per-bed alert history.
// Schema changes are embedded tern migrations applied under an advisory lock.
package postgres

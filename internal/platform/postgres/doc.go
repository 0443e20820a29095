// Package postgres implements the internal/store interfaces on PostgreSQL
// through database/sql and the pgx stdlib driver. Stores accept a
// store.DBTX so they can run on a pool or inside a transaction; WithTx
// rebinds a store to a *sql.Tx.
package postgres

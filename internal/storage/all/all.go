// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete storage backend to run,
// which in turn register their factories and DDL bootstrappers with the
// storage package.
//
// Importing this package makes the following storage kinds available at
// runtime:
//
//   - "sqlite"   (churn/internal/storage/sqlite)
//   - "postgres" (churn/internal/storage/postgres)
//   - "csv"      (churn/internal/storage/csvdir)
//
// A binary that needs only a subset of backends can blank-import the
// individual backend packages instead.
package all

import (
	_ "churn/internal/storage/csvdir"
	_ "churn/internal/storage/postgres"
	_ "churn/internal/storage/sqlite"
)

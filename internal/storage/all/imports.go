// Package all wires every built-in storage backend into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories with the storage package. Importing this package makes the
// following storage kinds available at runtime:
//
//   - "postgres" (supplyetl/internal/storage/postgres)
//   - "sqlite"   (supplyetl/internal/storage/sqlite)
//   - "mysql"    (supplyetl/internal/storage/mysql)
//
// Binaries that only need a subset of backends can blank-import the specific
// backend packages instead.
package all

import (
	_ "supplyetl/internal/storage/mysql"
	_ "supplyetl/internal/storage/postgres"
	_ "supplyetl/internal/storage/sqlite"
)

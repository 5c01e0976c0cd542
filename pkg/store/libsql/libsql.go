// Package libsql provides a libsql-backed session store, for local files or
// remote turso databases.
package libsql

import (
	"database/sql"
	"fmt"

	_ "github.com/tursodatabase/go-libsql" // register the libsql driver

	"github.com/papercomputeco/reel/pkg/store/sqlite"
)

// Driver implements store.Driver using libsql via the shared sqlite driver.
type Driver struct {
	*sqlite.Driver
}

// NewDriver creates a new libsql-backed session store.
// The url can be a local file URL like "file:./reel.db" or a remote database
// URL like "libsql://my-db.turso.io?authToken=...".
func NewDriver(url string) (*Driver, error) {
	db, err := sql.Open("libsql", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	inner, err := sqlite.OpenDB(db)
	if err != nil {
		return nil, err
	}

	return &Driver{Driver: inner}, nil
}

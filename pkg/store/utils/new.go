// Package storeutils constructs transcript store drivers from provider
// configuration.
package storeutils

import (
	"context"
	"errors"
	"fmt"

	"github.com/papercomputeco/reel/pkg/dotdir"
	"github.com/papercomputeco/reel/pkg/store"
	"github.com/papercomputeco/reel/pkg/store/inmemory"
	"github.com/papercomputeco/reel/pkg/store/libsql"
	"github.com/papercomputeco/reel/pkg/store/postgres"
	"github.com/papercomputeco/reel/pkg/store/sqlite"
)

type NewDriverOpts struct {
	DriverType string
	SQLitePath string
	DSN        string
}

func NewDriver(ctx context.Context, o *NewDriverOpts) (store.Driver, error) {
	switch o.DriverType {
	case "inmemory", "memory":
		return inmemory.NewDriver(), nil
	case "", "sqlite":
		path, err := ResolveSQLitePath(o.SQLitePath)
		if err != nil {
			return nil, err
		}
		return sqlite.NewDriver(path)
	case "postgres":
		if o.DSN == "" {
			return nil, errors.New("postgres store requires a DSN")
		}
		return postgres.NewDriver(ctx, o.DSN)
	case "libsql":
		if o.DSN == "" {
			return nil, errors.New("libsql store requires a DSN")
		}
		return libsql.NewDriver(o.DSN)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", o.DriverType)
	}
}

// ResolveSQLitePath locates an existing transcript database, falling back
// to a fresh path under the resolved .reel/ directory so first runs can
// create one.
func ResolveSQLitePath(override string) (string, error) {
	if path, err := store.ResolvePath(override); err == nil {
		return path, nil
	}

	target, err := dotdir.NewManager().Target("")
	if err != nil {
		return "", fmt.Errorf("resolving reel directory: %w", err)
	}

	return store.DefaultPath(target), nil
}

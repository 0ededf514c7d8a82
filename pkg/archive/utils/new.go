// Package archiveutils constructs archive drivers from configuration.
package archiveutils

import (
	"context"
	"fmt"

	"github.com/papercomputeco/membench/pkg/archive"
	"github.com/papercomputeco/membench/pkg/archive/inmemory"
	"github.com/papercomputeco/membench/pkg/archive/postgres"
	"github.com/papercomputeco/membench/pkg/archive/sqlite"
)

// NewDriverOpts selects and configures an archive driver. DSN is a file
// path for sqlite (empty uses the stock location under ResultsDir) and a
// connection string for postgres.
type NewDriverOpts struct {
	Provider   string
	DSN        string
	ResultsDir string
}

// NewDriver builds the archive driver named by Provider.
func NewDriver(ctx context.Context, o *NewDriverOpts) (archive.Driver, error) {
	switch o.Provider {
	case "sqlite":
		path := o.DSN
		if path == "" {
			path = sqlite.DefaultPath(o.ResultsDir)
		}
		return sqlite.NewDriver(path)
	case "postgres":
		return postgres.NewDriver(ctx, o.DSN)
	case "inmemory":
		return inmemory.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported archive provider: %s", o.Provider)
	}
}

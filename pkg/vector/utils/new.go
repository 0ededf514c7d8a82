// Package vectorutils constructs vector drivers from configuration.
package vectorutils

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/membench/pkg/vector"
	"github.com/papercomputeco/membench/pkg/vector/chroma"
	"github.com/papercomputeco/membench/pkg/vector/qdrant"
	"github.com/papercomputeco/membench/pkg/vector/sqlitevec"
)

// NewDriverOpts selects and configures a vector driver. Remote providers
// scope documents by Collection; sqlitevec scopes them by DBPath.
type NewDriverOpts struct {
	Provider   string
	TargetURL  string
	DBPath     string
	Collection string
	Dimensions uint
	Logger     *zap.Logger
}

// NewDriver builds the vector driver named by Provider.
func NewDriver(o *NewDriverOpts) (vector.Driver, error) {
	switch o.Provider {
	case "sqlitevec":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.DBPath,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "chroma":
		return chroma.NewDriver(chroma.Config{
			URL:            o.TargetURL,
			CollectionName: o.Collection,
			MaxRetries:     5,
			RetryDelay:     200 * time.Millisecond,
			MaxRetryDelay:  3 * time.Second,
		}, o.Logger)
	case "qdrant":
		return qdrant.NewDriver(qdrant.Config{
			Addr:           o.TargetURL,
			CollectionName: o.Collection,
			Dimensions:     o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.Provider)
	}
}

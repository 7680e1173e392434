// internal/db/errors.go
package db

import (
	"errors"

	"github.com/nhath/ezquery/internal/core"
)

var errNotConnected = errors.New("not connected")

// WrapConnectionError classifies a failure to reach the database
func WrapConnectionError(err error) error {
	return core.WrapConnectivity(err)
}

// WrapQueryError classifies a failure of a statement
func WrapQueryError(err error) error {
	return core.WrapExecution(err)
}

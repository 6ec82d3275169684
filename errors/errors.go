// Package errors provides error handling for semlift.
//
// This package re-exports github.com/cockroachdb/errors and adds the lifting
// error taxonomy as marker sentinels. Failures are created or wrapped normally
// and then marked with a kind, so callers classify them with errors.Is:
//
//	err := errors.Newf("import cycle detected: %s", key)
//	return errors.Mark(err, errors.ErrImportCycle)
//
//	if errors.Is(err, errors.ErrImportCycle) {
//	    // reject the plan
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapAll     = crdb.UnwrapAll
	Mark          = crdb.Mark
	GetAllHints   = crdb.GetAllHints
	FlattenHints  = crdb.FlattenHints
	GetAllDetails = crdb.GetAllDetails
)

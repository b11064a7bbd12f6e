package entitystore

import (
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
)

func errContextUnavailable() error {
	return pkgerrors.New(pkgerrors.CodeContextUnavailable, "entity store context unavailable")
}

func errFetchFailed(err error, kind string) error {
	return pkgerrors.Wrap(pkgerrors.CodeFetchFailed, err, "fetch "+kind)
}

func errSaveFailed(err error, op, kind string) error {
	return pkgerrors.Wrap(pkgerrors.CodeSaveFailed, err, op+" "+kind)
}

// IsContextUnavailable reports whether err means the store was never opened.
func IsContextUnavailable(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeContextUnavailable)
}

// IsFetchFailed reports whether err is a read failure.
func IsFetchFailed(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeFetchFailed)
}

// IsSaveFailed reports whether err is a failed durable commit.
func IsSaveFailed(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeSaveFailed)
}

package assets

import (
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
)

func errUnauthorized() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "profile image save requires a signed-in user")
}

func errCompressionFailed(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeCompressionFailed, err, "encode profile image")
}

func errLoadFailed(err error, path string) error {
	return pkgerrors.Wrap(pkgerrors.CodeLoadFailed, err, "read "+path)
}

// errMetadataNotFound never leaves the package; load falls through to the
// directory scan instead.
func errMetadataNotFound(userID string) error {
	return pkgerrors.New(pkgerrors.CodeMetadataNotFound, "no usable metadata for user "+userID)
}

// IsUnauthorized reports whether a save was refused for lack of a session.
func IsUnauthorized(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized)
}

// IsCompressionFailed reports whether the image could not be encoded.
func IsCompressionFailed(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeCompressionFailed)
}

// IsLoadFailed reports whether a located file could not be read.
func IsLoadFailed(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeLoadFailed)
}

// Package fits provides a pure Go implementation for reading, verifying
// and writing FITS files.
package fits

import "errors"

// Common errors
var (
	ErrNotFITS       = errors.New("not a FITS file")
	ErrCorruptHeader = errors.New("corrupted header")
	ErrChecksum      = errors.New("checksum mismatch")
	ErrClosed        = errors.New("file is closed")
	ErrReadOnly      = errors.New("file is read-only")
	ErrNotFound      = errors.New("HDU not found")
	ErrUnsupported   = errors.New("unsupported feature")
	ErrDataMismatch  = errors.New("data does not match header geometry")
)

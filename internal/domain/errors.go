package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")

	// Image pipeline failures. Recoverable by re-selecting the file.
	ErrDecode = errors.New("image could not be decoded")
	ErrEncode = errors.New("image could not be encoded")
	ErrUpload = errors.New("upload failed")

	ErrValidation       = errors.New("validation failed")
	ErrPersistence      = errors.New("listing could not be saved")
	ErrCapacityExceeded = errors.New("image limit reached")
	ErrDraftClosed      = errors.New("draft is closed")
)

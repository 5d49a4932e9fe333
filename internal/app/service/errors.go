package service

import "errors"

var (
	ErrGiftMapNotFound        = errors.New("gift map not found")
	ErrGiftMapItemNotFound    = errors.New("gift map item not found")
	ErrSharedGiftMapNotFound  = errors.New("shared gift map not found")
	ErrPersonNotFound         = errors.New("person not found")
	ErrInvalidItemInput       = errors.New("invalid gift item")
	ErrInvalidPersonInput     = errors.New("invalid person")
	ErrConflictRetryExhausted = errors.New("gift map kept changing, gave up retrying")
)

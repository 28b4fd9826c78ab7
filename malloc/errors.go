package malloc

import "errors"

var (
	// ErrOutOfMemory is returned by Alloc when no free block is large
	// enough for the request. The arena is left untouched and the call
	// may be retried after other allocations are freed.
	ErrOutOfMemory = errors.New("malloc: out of memory")

	// ErrInvalidSize is returned by Alloc for a negative size.
	ErrInvalidSize = errors.New("malloc: invalid allocation size")

	// ErrInvalidArenaSize is returned by the constructors when the
	// arena size is not a positive multiple of HeaderSize.
	ErrInvalidArenaSize = errors.New("malloc: arena size must be a positive multiple of 16")
)

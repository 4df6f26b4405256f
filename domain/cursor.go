package domain

import (
	"campus-chat/errors"
	"fmt"
	"strconv"
)

// Cursor is an opaque position in a conversation log: the sequence of the last
// message the caller has already seen.
type Cursor string

func CursorAt(sequence uint64) Cursor {
	return Cursor(fmt.Sprintf("%020d", sequence))
}

func (c Cursor) Sequence() (uint64, error) {
	seq, err := strconv.ParseUint(string(c), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errors.ErrInvalidCursor, string(c))
	}
	return seq, nil
}

package ferrors

import (
	"errors"
	"os"
)

// classifyIO maps a raw backend error onto the Kind the sync decision logic
// branches on: transient I/O, permission, or not-found are distinguished
// per spec.md §4.1.
func classifyIO(err error) Kind {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return KindNotFound
	case errors.Is(err, os.ErrPermission):
		return KindPermission
	default:
		return KindIO
	}
}

//go:build !cgo

package encoder

import "context"

// FetchModel returns ErrNotAvailable when CGO is not available.
func FetchModel(_ context.Context, _, _ string, _ bool) (Bundle, error) {
	return Bundle{}, ErrNotAvailable
}

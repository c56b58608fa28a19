package routing

import "errors"

var (
	// ErrGraphBuildFailed means one of the anchor points did not survive as a
	// grid node, typically because it sits inside a padded obstacle or
	// outside the canvas.
	ErrGraphBuildFailed = errors.New("routing: anchor is not a grid node")

	// ErrUnreachable means the grid graph was built but the end anchor
	// cannot be reached from the start anchor.
	ErrUnreachable = errors.New("routing: end anchor unreachable")
)

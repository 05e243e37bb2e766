//go:build !gocv
// +build !gocv

package capture

import (
	"fmt"

	"github.com/Brownie44l1/cassava-api/internal/model"
)

// Camera is unavailable without the gocv build tag.
type Camera struct{}

// OpenCamera always fails when built without the gocv tag.
func OpenCamera(id int) (*Camera, error) {
	return nil, fmt.Errorf("%w: device %d: gocv build tag is not enabled", ErrCameraUnavailable, id)
}

// Grab always fails.
func (c *Camera) Grab() (*model.ImageBuffer, error) {
	return nil, ErrCameraUnavailable
}

// Close is a no-op.
func (c *Camera) Close() error {
	return nil
}

//go:build gocv
// +build gocv

package capture

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/Brownie44l1/cassava-api/internal/model"
)

// Camera grabs still frames from a video device through OpenCV.
type Camera struct {
	device *gocv.VideoCapture
	frame  gocv.Mat
}

// OpenCamera opens video device id.
func OpenCamera(id int) (*Camera, error) {
	device, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	if !device.IsOpened() {
		device.Close()
		return nil, fmt.Errorf("%w: device %d did not open", ErrCameraUnavailable, id)
	}
	return &Camera{device: device, frame: gocv.NewMat()}, nil
}

// Grab reads the next frame and converts it from BGR to an RGB buffer.
func (c *Camera) Grab() (*model.ImageBuffer, error) {
	if ok := c.device.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, fmt.Errorf("%w: failed to read frame", ErrCameraUnavailable)
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(c.frame, &rgb, gocv.ColorBGRToRGB)

	buf := model.NewImageBuffer(rgb.Cols(), rgb.Rows())
	copy(buf.Pix, rgb.ToBytes())
	return buf, nil
}

// Close releases the frame and the device.
func (c *Camera) Close() error {
	c.frame.Close()
	return c.device.Close()
}

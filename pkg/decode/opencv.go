package decode

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// OpenCV decodes QR codes with OpenCV's QRCodeDetector via GoCV.
type OpenCV struct {
	detector gocv.QRCodeDetector
	mu       sync.Mutex // Protects detector
	closed   bool
}

// NewOpenCV creates an OpenCV-backed decoder. Close must be called to free
// the native detector.
func NewOpenCV() *OpenCV {
	return &OpenCV{detector: gocv.NewQRCodeDetector()}
}

// Decode finds and decodes one QR code in img.
func (o *OpenCV) Decode(img image.Image) (string, error) {
	if img == nil {
		return "", ErrNotFound
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return "", fmt.Errorf("decode: image to mat: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return "", ErrNotFound
	}

	points := gocv.NewMat()
	defer points.Close()
	straight := gocv.NewMat()
	defer straight.Close()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return "", fmt.Errorf("decode: detector closed")
	}

	text := o.detector.DetectAndDecode(mat, &points, &straight)
	if text == "" {
		return "", ErrNotFound
	}
	return text, nil
}

// Close releases the detector resources
func (o *OpenCV) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	return o.detector.Close()
}

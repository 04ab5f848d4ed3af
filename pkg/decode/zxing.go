package decode

import (
	"fmt"
	"image"
	"sync"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ZXing decodes QR codes with gozxing. It is pure Go and the default.
type ZXing struct {
	reader gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}
	mu     sync.Mutex // reader keeps per-decode state
}

// NewZXing creates a QR-only gozxing decoder. tryHarder trades frame rate
// for better reads of skewed or low-contrast labels.
func NewZXing(tryHarder bool) *ZXing {
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_POSSIBLE_FORMATS: []gozxing.BarcodeFormat{gozxing.BarcodeFormat_QR_CODE},
	}
	if tryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	return &ZXing{
		reader: qrcode.NewQRCodeReader(),
		hints:  hints,
	}
}

// Decode finds and decodes one QR code in img.
func (z *ZXing) Decode(img image.Image) (string, error) {
	if img == nil {
		return "", ErrNotFound
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("decode: bitmap: %w", err)
	}

	z.mu.Lock()
	defer z.mu.Unlock()
	defer z.reader.Reset()

	res, err := z.reader.Decode(bmp, z.hints)
	if err != nil {
		// NotFound, Checksum and Format exceptions all mean this frame
		// held nothing readable.
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if res.GetText() == "" {
		return "", ErrNotFound
	}
	return res.GetText(), nil
}

// Close is a no-op; gozxing holds no native resources.
func (z *ZXing) Close() error { return nil }

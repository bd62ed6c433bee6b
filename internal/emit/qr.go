package emit

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/boombuler/barcode/qr"
	"golang.org/x/image/draw"
)

// qrSize is the fixed output dimension (§4.6: "388x388 PNG").
const qrSize = 388

// writeQRPNG encodes payload as a QR code and writes it, resized to a
// fixed 388x388 canvas, to w as a PNG. qr.Encode produces a barcode at
// its own natural module size; CatmullRom gives a smoother edge than the
// nearest-neighbor scaling barcode.Scale does on its own when the target
// size isn't an exact multiple of the module count.
func writeQRPNG(w io.Writer, payload string) error {
	code, err := qr.Encode(payload, qr.M, qr.Auto)
	if err != nil {
		return fmt.Errorf("emit: qr encode: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, qrSize, qrSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), code, code.Bounds(), draw.Over, nil)

	return png.Encode(w, dst)
}

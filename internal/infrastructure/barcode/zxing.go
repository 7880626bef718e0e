// Package barcode adapts the gozxing readers to the frame decoder port.
package barcode

import (
	"context"
	"fmt"
	"image"

	"overlaycam/internal/core/domain"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	"go.uber.org/zap"
)

var zxingFormats = map[domain.BarcodeFormat]gozxing.BarcodeFormat{
	domain.FormatQRCode:     gozxing.BarcodeFormat_QR_CODE,
	domain.FormatDataMatrix: gozxing.BarcodeFormat_DATA_MATRIX,
	domain.FormatCode128:    gozxing.BarcodeFormat_CODE_128,
	domain.FormatCode39:     gozxing.BarcodeFormat_CODE_39,
	domain.FormatEAN13:      gozxing.BarcodeFormat_EAN_13,
	domain.FormatEAN8:       gozxing.BarcodeFormat_EAN_8,
	domain.FormatUPCA:       gozxing.BarcodeFormat_UPC_A,
}

// newReader builds a fresh reader; gozxing readers keep per-decode state.
func newReader(f domain.BarcodeFormat) gozxing.Reader {
	switch f {
	case domain.FormatQRCode:
		return qrcode.NewQRCodeReader()
	case domain.FormatDataMatrix:
		return datamatrix.NewDataMatrixReader()
	case domain.FormatCode128:
		return oned.NewCode128Reader()
	case domain.FormatCode39:
		return oned.NewCode39Reader()
	case domain.FormatEAN13:
		return oned.NewEAN13Reader()
	case domain.FormatEAN8:
		return oned.NewEAN8Reader()
	case domain.FormatUPCA:
		return oned.NewUPCAReader()
	default:
		return nil
	}
}

// Decoder tries every requested format in turn and returns the first hit.
type Decoder struct {
	logger *zap.SugaredLogger
}

func NewDecoder(logger *zap.SugaredLogger) *Decoder {
	return &Decoder{logger: logger}
}

func (d *Decoder) Decode(ctx context.Context, frame image.Image, hints domain.DecodeHints) (*domain.DecodeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame == nil || frame.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty frame", domain.ErrDecodeMiss)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(frame)
	if err != nil {
		return nil, fmt.Errorf("binarize frame: %w", err)
	}

	formats := hints.PossibleFormats
	if len(formats) == 0 {
		formats = domain.AllBarcodeFormats()
	}
	zh := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_POSSIBLE_FORMATS: toZXing(formats),
	}
	if hints.TryHarder {
		zh[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	for _, f := range formats {
		reader := newReader(f)
		if reader == nil {
			return nil, fmt.Errorf("unsupported barcode format %q", f)
		}
		result, err := reader.Decode(bmp, zh)
		if err == nil {
			return fromZXing(result), nil
		}
		if !isMiss(err) {
			d.logger.Debugw("decoder failed", "format", f, "error", err)
			return nil, fmt.Errorf("decode %s: %w", f, err)
		}
	}
	return nil, domain.ErrDecodeMiss
}

// isMiss reports the reader exceptions that mean "nothing readable here".
func isMiss(err error) bool {
	switch err.(type) {
	case gozxing.NotFoundException, gozxing.ChecksumException, gozxing.FormatException:
		return true
	}
	return false
}

func toZXing(formats []domain.BarcodeFormat) []gozxing.BarcodeFormat {
	out := make([]gozxing.BarcodeFormat, 0, len(formats))
	for _, f := range formats {
		if z, ok := zxingFormats[f]; ok {
			out = append(out, z)
		}
	}
	return out
}

func fromZXing(r *gozxing.Result) *domain.DecodeResult {
	out := &domain.DecodeResult{
		Text:     r.GetText(),
		Format:   domain.BarcodeFormat(r.GetBarcodeFormat().String()),
		RawBytes: r.GetRawBytes(),
	}
	for _, p := range r.GetResultPoints() {
		out.Points = append(out.Points, domain.ResultPoint{X: p.GetX(), Y: p.GetY()})
	}
	if md := r.GetResultMetadata(); len(md) > 0 {
		out.Metadata = make(map[string]interface{}, len(md))
		for k, v := range md {
			out.Metadata[fmt.Sprint(k)] = v
		}
	}
	return out
}

package domain

import "time"

// BarcodeFormat names a symbology, using the ZXing spelling.
type BarcodeFormat string

const (
	FormatQRCode     BarcodeFormat = "QR_CODE"
	FormatDataMatrix BarcodeFormat = "DATA_MATRIX"
	FormatCode128    BarcodeFormat = "CODE_128"
	FormatCode39     BarcodeFormat = "CODE_39"
	FormatEAN13      BarcodeFormat = "EAN_13"
	FormatEAN8       BarcodeFormat = "EAN_8"
	FormatUPCA       BarcodeFormat = "UPC_A"
)

// AllBarcodeFormats lists every format the scanner can be asked to recognize.
func AllBarcodeFormats() []BarcodeFormat {
	return []BarcodeFormat{
		FormatQRCode,
		FormatDataMatrix,
		FormatCode128,
		FormatCode39,
		FormatEAN13,
		FormatEAN8,
		FormatUPCA,
	}
}

// DecodeHints restricts what a decoder attempts. Empty PossibleFormats means all.
type DecodeHints struct {
	PossibleFormats []BarcodeFormat `json:"possible_formats,omitempty"`
	TryHarder       bool            `json:"try_harder"`
}

type ResultPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DecodeResult is the structured output of a successful decode.
type DecodeResult struct {
	Text     string                 `json:"text"`
	Format   BarcodeFormat          `json:"format"`
	RawBytes []byte                 `json:"raw_bytes,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Points   []ResultPoint          `json:"points,omitempty"`
}

// ScanEvent is emitted once per successful decode.
type ScanEvent struct {
	SessionID string       `json:"session_id"`
	Result    DecodeResult `json:"result"`
	At        time.Time    `json:"at"`
}

package raster

import (
	"errors"
	"fmt"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/pdf417"
	"github.com/boombuler/barcode/qr"
)

// ErrBarcode is returned for barcode values the symbology cannot encode.
var ErrBarcode = errors.New("raster: invalid barcode")

// EncodeBarcode encodes value in the named symbology: qr (the default),
// code128 or pdf417. The result is one module per pixel.
func EncodeBarcode(kind, value string) (barcode.Barcode, error) {
	if value == "" {
		return nil, fmt.Errorf("%w: empty value", ErrBarcode)
	}
	var (
		bc  barcode.Barcode
		err error
	)
	switch strings.ToLower(kind) {
	case "", "qr":
		bc, err = qr.Encode(value, qr.M, qr.Auto)
	case "code128":
		bc, err = code128.Encode(value)
	case "pdf417":
		bc, err = pdf417.Encode(value, 2)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrBarcode, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBarcode, err)
	}
	return bc, nil
}

// BarcodeSize returns the CSS pixel size a barcode is drawn at when the
// markup leaves one or both dimensions out.
func BarcodeSize(kind string, width, height float64) (float64, float64) {
	dw, dh := 240.0, 60.0
	switch strings.ToLower(kind) {
	case "", "qr":
		dw, dh = 128, 128
	case "pdf417":
		dh = 80
	}
	switch {
	case width > 0 && height > 0:
		return width, height
	case width > 0:
		if dw == dh {
			return width, width
		}
		return width, dh
	case height > 0:
		if dw == dh {
			return height, height
		}
		return dw, height
	}
	return dw, dh
}

package raster

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// fontStyle selects one of the embedded Go font files.
type fontStyle struct {
	bold, italic, mono bool
}

var (
	parseOnce sync.Once
	parseErr  error
	// Parsed fonts are read-only and shared; faces built from them are not.
	fonts map[fontStyle]*opentype.Font
)

func loadFonts() error {
	parseOnce.Do(func() {
		files := map[fontStyle][]byte{
			{}:                                     goregular.TTF,
			{bold: true}:                           gobold.TTF,
			{italic: true}:                         goitalic.TTF,
			{bold: true, italic: true}:             gobolditalic.TTF,
			{mono: true}:                           gomono.TTF,
			{mono: true, bold: true}:               gomonobold.TTF,
			{mono: true, italic: true}:             gomonoitalic.TTF,
			{mono: true, bold: true, italic: true}: gomonobolditalic.TTF,
		}
		fonts = make(map[fontStyle]*opentype.Font, len(files))
		for st, ttf := range files {
			f, err := opentype.Parse(ttf)
			if err != nil {
				parseErr = fmt.Errorf("raster: parsing embedded font: %w", err)
				return
			}
			fonts[st] = f
		}
	})
	return parseErr
}

type faceKey struct {
	style fontStyle
	size  float64 // device pixels
}

// faceCache holds the faces used by one render slot.
type faceCache struct {
	faces map[faceKey]font.Face
}

func newFaceCache() *faceCache {
	return &faceCache{faces: make(map[faceKey]font.Face)}
}

// face returns a face for the style at size device pixels.
func (c *faceCache) face(st fontStyle, size float64) (font.Face, error) {
	key := faceKey{style: st, size: size}
	if f, ok := c.faces[key]; ok {
		return f, nil
	}
	if err := loadFonts(); err != nil {
		return nil, err
	}
	f, err := opentype.NewFace(fonts[st], &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("raster: creating font face: %w", err)
	}
	c.faces[key] = f
	return f, nil
}

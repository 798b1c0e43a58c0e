// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package banner_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/holomush/authlobby/internal/banner"
	"github.com/holomush/authlobby/internal/host"
	"github.com/holomush/authlobby/internal/language"
)

// testPlacement yields a 16x8 pixel surface at 4 pixels per block.
var testPlacement = host.SurfacePlacement{
	Origin:  host.BlockPos{X: 0, Y: 100, Z: 0},
	Facing:  host.FaceSouth,
	Columns: 4,
	Rows:    2,
}

const testPixelsPerBlock = 4

func solidPNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// baseAssets returns a MapFS holding every image for en_US in a single color.
func baseAssets(t *testing.T, c color.RGBA) fstest.MapFS {
	t.Helper()
	fsys := fstest.MapFS{}
	for _, img := range banner.Images() {
		fsys[string(banner.KeyFor("en_US", img))] = &fstest.MapFile{Data: solidPNG(t, 16, 8, c)}
	}
	return fsys
}

func testCatalog(t *testing.T) *language.Catalog {
	t.Helper()
	c, err := language.NewCatalog("en_US", []language.Language{
		{Code: "es_ES", Fallback: "en_US"},
		{Code: "ca_ES", Fallback: "es_ES"},
		{Code: "fr_FR", Fallback: "en_US"},
	})
	require.NoError(t, err)
	return c
}

var (
	blue  = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	red   = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	green = color.RGBA{R: 0, G: 255, B: 0, A: 255}
)

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package banner

import (
	"bytes"
	"image"
	_ "image/gif"  // register GIF banners
	_ "image/jpeg" // register JPEG banners
	_ "image/png"  // register PNG banners

	"github.com/samber/oops"
	_ "golang.org/x/image/bmp" // register BMP banners
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP banners

	"github.com/holomush/authlobby/internal/host"
)

// Default surface geometry: a 48x24 block wall with its origin at (0,100,0)
// facing south, viewed head-on from the view lock.
const (
	DefaultColumns        = 16 * 3
	DefaultRows           = 8 * 3
	DefaultPixelsPerBlock = 16
)

// DefaultPlacement is where the lobby builds its banner wall.
var DefaultPlacement = host.SurfacePlacement{
	Origin:  host.BlockPos{X: 0, Y: 100, Z: 0},
	Facing:  host.FaceSouth,
	Columns: DefaultColumns,
	Rows:    DefaultRows,
}

// Surface is the placed banner wall. It is created once per process and
// drawn on per viewer; drawing never changes what other viewers see.
type Surface struct {
	id     host.SurfaceID
	width  int
	height int
}

// NewSurface wraps a placed surface. Width and height are in pixels.
func NewSurface(id host.SurfaceID, placement host.SurfacePlacement, pixelsPerBlock int) *Surface {
	return &Surface{
		id:     id,
		width:  placement.Columns * pixelsPerBlock,
		height: placement.Rows * pixelsPerBlock,
	}
}

// ID returns the host identifier of the surface.
func (s *Surface) ID() host.SurfaceID {
	return s.id
}

// Bounds returns the native pixel rectangle of the surface.
func (s *Surface) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.width, s.height)
}

// Rasterize decodes an encoded banner and scales it to the surface resolution.
func (s *Surface) Rasterize(data []byte) (host.Frame, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return host.Frame{}, oops.Code("BANNER_DECODE_FAILED").
			With("bytes", len(data)).
			Wrap(err)
	}

	dst := image.NewRGBA(s.Bounds())
	if src.Bounds().Size() == dst.Bounds().Size() {
		draw.Copy(dst, image.Point{}, src, src.Bounds(), draw.Src, nil)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	}

	return host.Frame{Surface: s.id, Image: dst}, nil
}

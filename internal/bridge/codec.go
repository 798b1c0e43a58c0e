// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package bridge

import (
	"bytes"
	"image"
	"image/png"

	"github.com/klauspost/compress/zstd"
	"github.com/samber/oops"
)

// Frame encodings carried in RenderCommand.Encoding.
const (
	EncodingPNG     = "png"
	EncodingPNGZstd = "png+zstd"
)

// frameEncoder turns rasterized frames into wire payloads.
type frameEncoder struct {
	png  png.Encoder
	zstd *zstd.Encoder
}

// newFrameEncoder returns an encoder for the negotiated compression.
func newFrameEncoder(compression string) (*frameEncoder, error) {
	e := &frameEncoder{png: png.Encoder{CompressionLevel: png.BestSpeed}}
	if compression != CompressionZstd {
		return e, nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, oops.With("compression", compression).Wrap(err)
	}
	e.zstd = enc
	return e, nil
}

// Encode returns the encoding name and bytes for img.
func (e *frameEncoder) Encode(img image.Image) (string, []byte, error) {
	var buf bytes.Buffer
	if err := e.png.Encode(&buf, img); err != nil {
		return "", nil, oops.Wrapf(err, "encode frame")
	}
	if e.zstd == nil {
		return EncodingPNG, buf.Bytes(), nil
	}
	return EncodingPNGZstd, e.zstd.EncodeAll(buf.Bytes(), nil), nil
}

// Close releases the zstd encoder.
func (e *frameEncoder) Close() {
	if e.zstd != nil {
		_ = e.zstd.Close()
	}
}

// DecodeFrame reverses Encode. Host adapters written in Go can use it
// directly, and the tests use it to check what was sent.
func DecodeFrame(encoding string, data []byte) (image.Image, error) {
	switch encoding {
	case EncodingPNG:
	case EncodingPNGZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, oops.Wrap(err)
		}
		defer dec.Close()
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return nil, oops.With("encoding", encoding).Wrapf(err, "decompress frame")
		}
	default:
		return nil, oops.Code("BRIDGE_ENCODING_INVALID").
			With("encoding", encoding).
			Errorf("unknown frame encoding %q", encoding)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, oops.With("encoding", encoding).Wrapf(err, "decode frame")
	}
	return img, nil
}

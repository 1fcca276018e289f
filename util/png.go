package util

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
	"image"
	"io"

	"github.com/pkg/errors"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// encodeRGBA 写出 8-bit RGBA (color type 6) PNG
//
// image/png 对完全不透明的图片会省掉 alpha 通道
func encodeRGBA(w io.Writer, img *image.NRGBA) error {
	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	if width <= 0 || height <= 0 {
		return errors.Errorf("invalid image size %dx%d", width, height)
	}

	var idat bytes.Buffer
	zw := zlib.NewWriter(&idat)
	row := make([]byte, 1+4*width)
	for y := 0; y < height; y++ {
		// filter type 0 (none)
		off := y * img.Stride
		copy(row[1:], img.Pix[off:off+4*width])
		if _, err := zw.Write(row); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(width))
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(height))
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // RGBA

	if _, err := w.Write(pngSignature); err != nil {
		return err
	}
	if err := writeChunk(w, "IHDR", ihdr); err != nil {
		return err
	}
	if err := writeChunk(w, "IDAT", idat.Bytes()); err != nil {
		return err
	}
	return writeChunk(w, "IEND", nil)
}

func writeChunk(w io.Writer, typ string, data []byte) error {
	header := make([]byte, 8)
	binary.BigEndian.PutUint32(header[:4], uint32(len(data)))
	copy(header[4:], typ)

	crc := crc32.NewIEEE()
	_, _ = crc.Write(header[4:])
	_, _ = crc.Write(data)
	footer := make([]byte, 4)
	binary.BigEndian.PutUint32(footer, crc.Sum32())

	for _, b := range [][]byte{header, data, footer} {
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}

package rembg

import (
	"image"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// hasUsefulAlpha 检查 alpha 通道是否真的包含透明信息
// 只要存在非 255（非完全不透明），就认为“已有抠图”
func hasUsefulAlpha(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 255 {
			return true
		}
	}
	return false
}

// resizeWithinMax 缩放（最长边 <= maxSize）, maxSize <= 0 不缩放
func resizeWithinMax(img *image.NRGBA, maxSize int) *image.NRGBA {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	longest := max(w, h)

	if maxSize <= 0 || longest <= maxSize {
		return img
	}

	scale := float64(maxSize) / float64(longest)
	newW := max(1, int(float64(w)*scale))
	newH := max(1, int(float64(h)*scale))

	resized := resize.Resize(uint(newW), uint(newH), img, resize.Lanczos3)
	return ToNRGBA(resized)
}

// scaleTo 缩放到指定尺寸, 原点归零
func scaleTo(img image.Image, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// applyAlpha 把 mask 的 alpha 乘到 src 上 (两者同尺寸), 返回新图
func applyAlpha(src, mask *image.NRGBA) *image.NRGBA {
	dst := cloneNRGBA(src)
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	for y := 0; y < h; y++ {
		drow := y * dst.Stride
		mrow := y * mask.Stride
		for x := 0; x < w; x++ {
			i := drow + x*4 + 3
			a := uint32(dst.Pix[i]) * uint32(mask.Pix[mrow+x*4+3])
			dst.Pix[i] = uint8((a + 127) / 255)
		}
	}
	return dst
}

// ToNRGBA 已经是 NRGBA 时原样返回, 否则转换
func ToNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba
	}
	return cloneNRGBA(img)
}

// cloneNRGBA 总是返回新的 NRGBA, 原点归零
func cloneNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

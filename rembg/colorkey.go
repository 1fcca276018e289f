package rembg

import (
	"context"
	"image"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

const (
	DefaultKeyColor  = "#ffffff"
	DefaultTolerance = 0.08
	DefaultSoftness  = 0.06
)

// ColorKey 本地抠图: 与 Key 颜色的 Lab 距离 <= Tolerance 的像素完全透明,
// 在 (Tolerance, Tolerance+Softness) 之间线性过渡
//
// Contiguous 为 true 时只从图片边缘做 flood fill, 主体内部的同色区域保留
type ColorKey struct {
	Key        colorful.Color
	Tolerance  float64
	Softness   float64
	Contiguous bool
}

func NewColorKey(hex string, tolerance, softness float64, contiguous bool) (*ColorKey, error) {
	if hex == "" {
		hex = DefaultKeyColor
	}
	key, err := colorful.Hex(hex)
	if err != nil {
		return nil, errors.Wrapf(err, "parse key color %q", hex)
	}
	if tolerance < 0 || softness < 0 {
		return nil, errors.Errorf("tolerance and softness must be >= 0, got %v and %v", tolerance, softness)
	}
	return &ColorKey{
		Key:        key,
		Tolerance:  tolerance,
		Softness:   softness,
		Contiguous: contiguous,
	}, nil
}

func (c *ColorKey) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	dst := cloneNRGBA(img)
	if c.Contiguous {
		if err := c.floodFill(ctx, dst); err != nil {
			return nil, err
		}
		return dst, nil
	}

	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	for y := 0; y < h; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < w; x++ {
			i := y*dst.Stride + x*4
			c.apply(dst.Pix[i:i+4], c.keep(dst.Pix[i:i+4]))
		}
	}
	return dst, nil
}

// keep 返回像素保留的比例, 0 为背景, 1 为前景
func (c *ColorKey) keep(p []uint8) float64 {
	if p[3] == 0 {
		return 0
	}
	col := colorful.Color{R: float64(p[0]) / 255, G: float64(p[1]) / 255, B: float64(p[2]) / 255}
	d := col.DistanceLab(c.Key)
	switch {
	case d <= c.Tolerance:
		return 0
	case c.Softness == 0 || d >= c.Tolerance+c.Softness:
		return 1
	default:
		return (d - c.Tolerance) / c.Softness
	}
}

func (c *ColorKey) apply(p []uint8, k float64) {
	if k >= 1 {
		return
	}
	p[3] = uint8(float64(p[3])*k + 0.5)
}

func (c *ColorKey) floodFill(ctx context.Context, img *image.NRGBA) error {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil
	}
	visited := make([]bool, w*h)
	queue := make([]int, 0, 2*(w+h))

	push := func(x, y int) {
		n := y*w + x
		if visited[n] {
			return
		}
		visited[n] = true
		i := y*img.Stride + x*4
		k := c.keep(img.Pix[i : i+4])
		if k >= 1 {
			return
		}
		c.apply(img.Pix[i:i+4], k)
		queue = append(queue, n)
	}

	for x := 0; x < w; x++ {
		push(x, 0)
		push(x, h-1)
	}
	for y := 0; y < h; y++ {
		push(0, y)
		push(w-1, y)
	}

	for steps := 0; len(queue) > 0; steps++ {
		if steps%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		n := queue[0]
		queue = queue[1:]
		x, y := n%w, n/w
		if x > 0 {
			push(x-1, y)
		}
		if x < w-1 {
			push(x+1, y)
		}
		if y > 0 {
			push(x, y-1)
		}
		if y < h-1 {
			push(x, y+1)
		}
	}
	return nil
}

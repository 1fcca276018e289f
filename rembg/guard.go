package rembg

import (
	"context"
	"image"

	"github.com/pkg/errors"

	"github.com/chaos-io/rembg-batch/logger"
)

// Guard 包装任意 Remover, 保证输出:
//
//	与输入同尺寸
//	像素格式为 NRGBA（一定带 alpha 通道）
//
// MaxSide > 0 时先缩小再分割, 分割结果只取 alpha 放大回原尺寸, 颜色保留原图
type Guard struct {
	Remover           Remover
	MaxSide           int
	KeepExistingAlpha bool
}

func (g *Guard) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}

	src := ToNRGBA(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()

	// 已有透明信息, 视为已抠图
	if g.KeepExistingAlpha && hasUsefulAlpha(src) {
		logger.Entry(ctx).Debug("input already has alpha, skip remover")
		return cloneNRGBA(src), nil
	}

	in := resizeWithinMax(src, g.MaxSide)
	resized := in != src

	out, err := g.Remover.Remove(ctx, in)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("remover returned no image")
	}

	res := ToNRGBA(out)
	if !resized && res.Bounds().Dx() == w && res.Bounds().Dy() == h {
		return res, nil
	}

	logger.Entry(ctx).WithField("from", res.Bounds().Size()).WithField("to", image.Pt(w, h)).
		Debug("scale mask back to input size")
	return applyAlpha(src, scaleTo(res, w, h)), nil
}

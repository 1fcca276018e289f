package batch

import (
	"context"
	"image"

	"github.com/pkg/errors"

	"github.com/chaos-io/rembg-batch/rembg"
	"github.com/chaos-io/rembg-batch/util"
)

// RemoveBackground 处理单个文件, 覆盖已有的 outputPath
//
// outputPath 所在目录必须已存在
func (b *Batch) RemoveBackground(ctx context.Context, inputPath, outputPath string) error {
	defer util.Trace(ctx, "remove background "+inputPath)()

	img, err := util.OpenImage(inputPath)
	if err != nil {
		if errors.Is(err, util.ErrDecode) {
			return newError(KindDecode, inputPath, err)
		}
		return newError(KindFileSystem, inputPath, err)
	}

	out, err := b.RemoveImage(ctx, img)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			e.Path = inputPath
		}
		return err
	}

	if err := util.SavePNG(outputPath, out); err != nil {
		return newError(KindIO, outputPath, err)
	}
	return nil
}

// RemoveImage 对已解码的图片去背景, 结果与输入同尺寸且带 alpha
func (b *Batch) RemoveImage(ctx context.Context, img image.Image) (*image.NRGBA, error) {
	out, err := b.remover.Remove(ctx, img)
	if err != nil {
		return nil, newError(KindSegmentation, "", err)
	}
	if out == nil {
		return nil, newError(KindSegmentation, "", errors.New("remover returned no image"))
	}
	if got, want := out.Bounds().Size(), img.Bounds().Size(); got != want {
		return nil, newError(KindSegmentation, "", errors.Errorf("remover changed size from %v to %v", want, got))
	}
	return rembg.ToNRGBA(out), nil
}

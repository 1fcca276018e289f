package util

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"

	"github.com/chaos-io/rembg-batch/logger"
)

// FileMode 新建输出文件的权限, 覆盖已有文件时沿用原文件的权限
const FileMode os.FileMode = 0o644

// ErrDecode 标记输入不是可解码的图片
var ErrDecode = errors.New("decode image")

// OpenImage 打开本地图片
//
// 打开失败返回 *fs.PathError (可用 errors.As 判断), 解码失败返回包装了 ErrDecode 的错误
func OpenImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()

	return DecodeImage(file)
}

// DecodeImage 解码任意已注册格式 (png/jpeg/gif)
func DecodeImage(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, &decodeError{err: err}
	}
	return img, nil
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return ErrDecode.Error() + ": " + e.err.Error() }

func (e *decodeError) Unwrap() error { return e.err }

func (e *decodeError) Is(target error) bool { return target == ErrDecode }

// SavePNG 以 PNG 写入 path, 覆盖已有文件
//
// 先写入同目录下的临时文件再 rename, 失败时不会留下半个文件
func SavePNG(path string, img image.Image) error {
	mode := FileMode
	if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
		mode = fi.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+ksuid.New().String()+"-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()

	if err := EncodePNG(tmp, img); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	// CreateTemp 固定是 0600
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "chmod temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrapf(err, "rename to %s", path)
	}
	return nil
}

// EncodePNG 编码为 PNG, *image.NRGBA 总是带 alpha 通道写出
func EncodePNG(w io.Writer, img image.Image) error {
	if n, ok := img.(*image.NRGBA); ok && n.Opaque() {
		return errors.Wrap(encodeRGBA(w, n), "encode png")
	}
	enc := &png.Encoder{CompressionLevel: png.DefaultCompression}
	return errors.Wrap(enc.Encode(w, img), "encode png")
}

// Trace 用法: defer util.Trace(ctx, "remove background")()
//
// 写到 ctx 携带的 logger, Debug 级别
func Trace(ctx context.Context, name string) func() {
	start := time.Now()
	return func() {
		logger.Entry(ctx).WithField("elapsed", time.Since(start)).Debugf("%s done", name)
	}
}

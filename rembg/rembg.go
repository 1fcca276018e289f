package rembg

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
)

// Remover 前景/背景分割: 返回同尺寸、带 alpha 的图片, 背景像素透明
type Remover interface {
	Remove(ctx context.Context, img image.Image) (image.Image, error)
}

const (
	KindColorKey    = "colorkey"
	KindRemote      = "remote"
	KindPassthrough = "passthrough"
)

// Kinds New 支持的全部 Kind
var Kinds = []string{KindColorKey, KindRemote, KindPassthrough}

type Options struct {
	Kind string

	// colorkey
	KeyColor   string
	Tolerance  float64
	Softness   float64
	Contiguous bool

	// remote
	RemoteURL     string
	RemoteModel   string
	RemoteTimeout time.Duration

	MaxSide           int
	KeepExistingAlpha bool
}

// New 按 Kind 构造 Remover, 外面套一层 Guard
func New(opts Options) (Remover, error) {
	var inner Remover
	switch opts.Kind {
	case KindColorKey, "":
		ck, err := NewColorKey(opts.KeyColor, opts.Tolerance, opts.Softness, opts.Contiguous)
		if err != nil {
			return nil, err
		}
		inner = ck
	case KindRemote:
		if opts.RemoteURL == "" {
			return nil, errors.New("remote remover needs a url")
		}
		inner = NewRemote(opts.RemoteURL, opts.RemoteModel, opts.RemoteTimeout)
	case KindPassthrough:
		inner = NewPassthrough()
	default:
		return nil, errors.Errorf("unknown remover %q", opts.Kind)
	}

	return &Guard{
		Remover:           inner,
		MaxSide:           opts.MaxSide,
		KeepExistingAlpha: opts.KeepExistingAlpha,
	}, nil
}

// Passthrough 不做分割, 只转为 NRGBA
type Passthrough struct{}

func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

func (p *Passthrough) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	return cloneNRGBA(img), nil
}

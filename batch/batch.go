// Package batch 批量去除目录下 PNG 的背景
//
// 按文件名顺序逐个处理: 解码, 交给 rembg.Remover, 以同名带 alpha 的 PNG 写入输出目录
package batch

import (
	"github.com/pkg/errors"

	"github.com/chaos-io/rembg-batch/rembg"
)

// Policy 单个文件失败时的处理方式
//
//	PolicyAbort     第一次失败即停止, 之前的输出保留
//	PolicyContinue  记入 Summary 后继续
type Policy string

const (
	PolicyAbort    Policy = "abort"
	PolicyContinue Policy = "continue"
)

// ParsePolicy 空字符串视为 PolicyAbort
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyAbort, PolicyContinue:
		return p, nil
	case "":
		return PolicyAbort, nil
	default:
		return "", errors.Errorf("unknown policy %q, want %q or %q", s, PolicyAbort, PolicyContinue)
	}
}

// Options 批处理选项
type Options struct {
	Policy Policy
	// Overwrite false 时已存在的输出文件跳过
	Overwrite bool
}

func DefaultOptions() Options {
	return Options{
		Policy:    PolicyAbort,
		Overwrite: true,
	}
}

type Batch struct {
	remover rembg.Remover
	opts    Options
}

// New Policy 为空时使用 PolicyAbort
func New(remover rembg.Remover, opts Options) *Batch {
	if opts.Policy == "" {
		opts.Policy = PolicyAbort
	}
	return &Batch{
		remover: remover,
		opts:    opts,
	}
}

// File 一张输入图片及其输出路径
type File struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	OutputPath string `json:"output_path,omitempty"`
}

package batch

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind 文件在哪个环节失败
type Kind int

const (
	KindFileSystem Kind = iota + 1
	KindDecode
	KindSegmentation
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindFileSystem:
		return "filesystem"
	case KindDecode:
		return "decode"
	case KindSegmentation:
		return "segmentation"
	case KindIO:
		return "io"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error 单个文件的失败, Path 为出错的文件或目录
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind err 链上是否有类型为 k 的 *Error
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

func newError(k Kind, path string, err error) *Error {
	return &Error{Kind: k, Path: path, Err: err}
}

package batch

import (
	"os"
	"path/filepath"
	"strings"
)

const pngExt = ".png"

// Enumerate 列出 inputDir 下一层的 PNG 文件 (扩展名不区分大小写), 按文件名排序, 忽略目录
func Enumerate(inputDir string) ([]File, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, newError(KindFileSystem, inputDir, err)
	}

	files := make([]File, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), pngExt) {
			continue
		}
		files = append(files, File{
			Name: e.Name(),
			Path: filepath.Join(inputDir, e.Name()),
		})
	}
	return files, nil
}

package batch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/sirupsen/logrus"

	"github.com/chaos-io/rembg-batch/logger"
)

// Status 单个文件的处理结果
type Status string

const (
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// FileResult 单个文件的结果, Err 只在进程内使用, 不参与 JSON
type FileResult struct {
	File
	Status   Status        `json:"status"`
	Kind     string        `json:"kind,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`

	Err error `json:"-"`
}

// Summary 一次批处理的汇总
type Summary struct {
	RunID      string       `json:"run_id"`
	InputDir   string       `json:"input_dir"`
	OutputDir  string       `json:"output_dir"`
	Found      int          `json:"found"`
	Processed  []FileResult `json:"processed"`
	Failed     []FileResult `json:"failed"`
	Skipped    []FileResult `json:"skipped"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// OK 没有失败的文件
func (s *Summary) OK() bool { return len(s.Failed) == 0 }

func (s *Summary) add(r FileResult) {
	switch r.Status {
	case StatusProcessed:
		s.Processed = append(s.Processed, r)
	case StatusFailed:
		s.Failed = append(s.Failed, r)
	case StatusSkipped:
		s.Skipped = append(s.Skipped, r)
	}
}

// Run 处理 inputDir 下全部 PNG, 结果写入 outputDir
//
// inputDir 不存在时直接失败, 不会创建 outputDir
// PolicyAbort 下返回第一个失败文件的错误和已完成部分的 Summary, 返回的 Summary 不会为 nil
func (b *Batch) Run(ctx context.Context, inputDir, outputDir string) (*Summary, error) {
	s := &Summary{
		RunID:     ksuid.New().String(),
		InputDir:  inputDir,
		OutputDir: outputDir,
		Processed: []FileResult{},
		Failed:    []FileResult{},
		Skipped:   []FileResult{},
		StartedAt: time.Now(),
	}
	defer func() {
		s.FinishedAt = time.Now()
	}()

	ctx = logger.WithFields(ctx, logrus.Fields{"run_id": s.RunID})
	log := logger.Entry(ctx)

	files, err := Enumerate(inputDir)
	if err != nil {
		return s, err
	}
	s.Found = len(files)

	if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
		return s, newError(KindIO, outputDir, err)
	}

	log.Infof("found %d PNG files", len(files))

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return s, err
		}

		f.OutputPath = filepath.Join(outputDir, f.Name)
		flog := log.WithField("file", f.Name)

		if !b.opts.Overwrite {
			if _, err := os.Stat(f.OutputPath); err == nil {
				flog.Infof("skipped, output exists: %s", f.OutputPath)
				s.add(FileResult{File: f, Status: StatusSkipped})
				continue
			}
		}

		flog.Infof("processing: %s", f.Path)
		start := time.Now()
		err := b.RemoveBackground(logger.WithLogEntry(ctx, flog), f.Path, f.OutputPath)
		res := FileResult{File: f, Status: StatusProcessed, Duration: time.Since(start)}
		if err != nil {
			res.Status = StatusFailed
			res.Error = err.Error()
			res.Err = err
			if e, ok := err.(*Error); ok {
				res.Kind = e.Kind.String()
			}
			s.add(res)

			flog.WithError(err).Error("failed")
			if b.opts.Policy == PolicyAbort {
				return s, err
			}
			continue
		}

		s.add(res)
		flog.Infof("saved: %s", f.OutputPath)
	}

	log.WithField("failed", len(s.Failed)).WithField("skipped", len(s.Skipped)).
		Infof("done! processed %d images", len(s.Processed))
	log.Infof("transparent images saved to: %s", outputDir)
	return s, nil
}

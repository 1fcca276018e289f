package schedule

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job 一次定时执行
type Job func(ctx context.Context) error

// Scheduler 按 cron 表达式周期执行 Job, 上一次未结束时跳过本次
type Scheduler struct {
	cron *cron.Cron
	log  *logrus.Entry
	ctx  context.Context
}

func New(spec string, log *logrus.Entry, job Job) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, errors.Wrapf(err, "parse schedule %q", spec)
	}

	cl := cron.PrintfLogger(log)
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s := &Scheduler{cron: c, log: log, ctx: context.Background()}

	_, err := c.AddFunc(spec, func() {
		if err := job(s.ctx); err != nil {
			log.WithError(err).Error("scheduled run failed")
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "add schedule %q", spec)
	}
	return s, nil
}

// Run 阻塞直到 ctx 结束, 返回前等待正在执行的 Job 完成
//
// Job 收到的也是这个 ctx, 取消时正在执行的批处理会在文件之间停下
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	s.log.Info("scheduler started")

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
	return nil
}

package scheduler

import (
	"time"

	"OpenCollab/internal/modules/notification/domain/token"
	"OpenCollab/internal/modules/notification/infrastructure/metrics"
	"OpenCollab/pkg/zlog"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TokenJanitor 定期清理进程内凭证存储中的过期条目
type TokenJanitor struct {
	cron     *cron.Cron
	purger   token.Purger
	recorder metrics.Recorder
	now      func() time.Time
}

func NewTokenJanitor(purger token.Purger, recorder metrics.Recorder) *TokenJanitor {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &TokenJanitor{
		cron:     cron.New(),
		purger:   purger,
		recorder: recorder,
		now:      time.Now,
	}
}

// Start expr 为标准 5 段 cron 表达式或 @every 描述符
func (j *TokenJanitor) Start(expr string) error {
	if _, err := j.cron.AddFunc(expr, func() { j.RunOnce() }); err != nil {
		return err
	}
	j.cron.Start()
	zlog.Info("token janitor started", zap.String("expr", expr))
	return nil
}

// Stop 等待正在执行的清理结束
func (j *TokenJanitor) Stop() {
	<-j.cron.Stop().Done()
}

func (j *TokenJanitor) RunOnce() int {
	n := j.purger.PurgeExpired(j.now())
	if n > 0 {
		j.recorder.RecordToken(metrics.TokenPurged, n)
		zlog.Debug("expired connection tokens purged", zap.Int("count", n))
	}
	return n
}

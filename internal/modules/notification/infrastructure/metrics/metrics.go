package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultDelivered = "delivered"
	ResultOffline   = "offline"
	ResultFailed    = "failed"

	TokenIssued   = "issued"
	TokenAccepted = "accepted"
	TokenRejected = "rejected"
	TokenConsumed = "consumed"
	TokenPurged   = "purged"
)

// Recorder 实时通知子系统的指标埋点
type Recorder interface {
	RecordDispatch(event, result string)
	RecordToken(result string, n int)
}

type Collector struct {
	dispatch *prometheus.CounterVec
	tokens   *prometheus.CounterVec
}

// NewCollector 注册指标；connections 为当前在线连接数的读取函数，可为 nil
func NewCollector(reg prometheus.Registerer, connections func() int) *Collector {
	c := &Collector{
		dispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opencollab_notification_dispatch_total",
			Help: "按事件与结果统计的实时推送次数",
		}, []string{"event", "result"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opencollab_connection_token_total",
			Help: "连接凭证生命周期事件计数",
		}, []string{"result"}),
	}
	reg.MustRegister(c.dispatch, c.tokens)

	if connections != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "opencollab_ws_connections",
			Help: "当前已注册的实时连接数",
		}, func() float64 {
			return float64(connections())
		}))
	}
	return c
}

func (c *Collector) RecordDispatch(event, result string) {
	c.dispatch.WithLabelValues(event, result).Inc()
}

func (c *Collector) RecordToken(result string, n int) {
	if n <= 0 {
		return
	}
	c.tokens.WithLabelValues(result).Add(float64(n))
}

// Nop 不记录任何指标
type Nop struct{}

func (Nop) RecordDispatch(string, string) {}
func (Nop) RecordToken(string, int)       {}

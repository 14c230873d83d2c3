// Package metrics はmarketサーバーのPrometheusメトリクスを定義する。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "market"

// Metrics はサーバーが記録するメトリクスの集合。
type Metrics struct {
	// NotificationPolls は通知ポーリングの回数。resultラベルは ok または error。
	NotificationPolls *prometheus.CounterVec
	// NotificationPollDuration は1回の集約にかかった時間。
	NotificationPollDuration prometheus.Histogram
	// NotificationEntries は1回のポーリングで返した通知件数。
	NotificationEntries prometheus.Histogram
	// OrdersOmitted は取得に失敗して集約から除外した注文の数。
	OrdersOmitted prometheus.Counter
	// Acknowledgments は既読化でカーソルが進んだ回数。kindラベル付き。
	Acknowledgments *prometheus.CounterVec
	// StatusTransitions は成功したステータス遷移の回数。statusラベル付き。
	StatusTransitions *prometheus.CounterVec
	// StatusTransitionsRejected は拒否されたステータス遷移の回数。reasonラベル付き。
	StatusTransitionsRejected *prometheus.CounterVec
	// MessagesPosted は投稿されたメッセージの数。
	MessagesPosted prometheus.Counter
	// OrdersPlaced は作成された注文の数。
	OrdersPlaced prometheus.Counter
}

// New はメトリクスを生成し、regに登録する。
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		NotificationPolls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "polls_total",
			Help:      "Total number of notification polls",
		}, []string{"result"}),
		NotificationPollDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "poll_duration_seconds",
			Help:      "Duration of one notification aggregation pass",
			Buckets:   prometheus.DefBuckets,
		}),
		NotificationEntries: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "entries",
			Help:      "Number of entries returned by one notification poll",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		OrdersOmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "orders_omitted_total",
			Help:      "Total number of orders omitted from a poll because a dependency fetch failed",
		}),
		Acknowledgments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "acknowledgments_total",
			Help:      "Total number of acknowledgments that advanced a seen cursor",
		}, []string{"kind"}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "order",
			Name:      "status_transitions_total",
			Help:      "Total number of successful order status transitions",
		}, []string{"status"}),
		StatusTransitionsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "order",
			Name:      "status_transitions_rejected_total",
			Help:      "Total number of rejected order status transitions",
		}, []string{"reason"}),
		MessagesPosted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "thread",
			Name:      "messages_posted_total",
			Help:      "Total number of messages posted to order threads",
		}),
		OrdersPlaced: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "order",
			Name:      "placed_total",
			Help:      "Total number of orders placed",
		}),
	}
}

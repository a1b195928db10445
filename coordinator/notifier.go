package coordinator

import (
	"context"
	"math"
	"time"

	"github.com/absmach/flround/pkg/fl"
	"github.com/absmach/flround/pkg/mqtt"
)

// Notifier is told about every completed round.
type Notifier interface {
	// final is set for the last round of a run.
	NotifyRound(ctx context.Context, rec fl.RoundRecord, final bool) error
}

type RoundNotification struct {
	Round              uint64    `json:"round"`
	Metric             *float64  `json:"metric,omitempty"`
	Accepted           int       `json:"accepted"`
	Status             string    `json:"status"`
	NextRoundAvailable bool      `json:"next_round_available"`
	Timestamp          time.Time `json:"timestamp"`
}

type mqttNotifier struct {
	pubsub mqtt.PubSub
	topic  string
}

// NewMQTTNotifier publishes a RoundNotification on the rounds topic.
func NewMQTTNotifier(pubsub mqtt.PubSub, topics mqtt.Topics) Notifier {
	return &mqttNotifier{
		pubsub: pubsub,
		topic:  topics.RoundsNext(),
	}
}

func (n *mqttNotifier) NotifyRound(ctx context.Context, rec fl.RoundRecord, final bool) error {
	msg := RoundNotification{
		Round:              rec.Round,
		Accepted:           rec.Accepted,
		Status:             "complete",
		NextRoundAvailable: !final,
		Timestamp:          rec.CompletedAt,
	}
	if !math.IsNaN(rec.Metric) {
		msg.Metric = &rec.Metric
	}

	return n.pubsub.Publish(ctx, n.topic, msg)
}

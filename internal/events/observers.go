package events

import (
	log "github.com/sirupsen/logrus"

	"supportrelay/internal/common"
	"supportrelay/internal/metrics"
)

// LogObserver writes one structured line per event
type LogObserver struct {
	logger *log.Entry
}

func NewLogObserver() *LogObserver {
	return &LogObserver{logger: log.WithField("component", "events")}
}

func (o *LogObserver) Name() string {
	return "log_observer"
}

func (o *LogObserver) Update(event common.Event) error {
	fields := log.Fields{
		"event":           string(event.Type),
		"conversation_id": event.ConversationID,
	}
	if event.UserID != "" {
		fields["user_id"] = event.UserID
	}
	if event.ModeratorID != "" {
		fields["moderator_id"] = event.ModeratorID
	}
	if event.Actor != "" {
		fields["actor"] = event.Actor
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}
	o.logger.WithFields(fields).Info("event")
	return nil
}

type MetricsObserver struct{}

func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

func (o *MetricsObserver) Name() string {
	return "metrics_observer"
}

func (o *MetricsObserver) Update(event common.Event) error {
	metrics.ObserveEvent(string(event.Type))
	return nil
}

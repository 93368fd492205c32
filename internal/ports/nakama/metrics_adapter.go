package nakama

import (
	"context"

	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/ports"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// NakamaMetricsAdapter implements ports.MetricsPort with Nakama's metrics and event APIs.
type NakamaMetricsAdapter struct {
	nk     runtime.NakamaModule
	logger runtime.Logger
}

// NewNakamaMetricsAdapter creates a new metrics adapter.
func NewNakamaMetricsAdapter(nk runtime.NakamaModule, logger runtime.Logger) *NakamaMetricsAdapter {
	return &NakamaMetricsAdapter{nk: nk, logger: logger}
}

func (a *NakamaMetricsAdapter) IncCounter(name string, tags map[string]string, delta int64) {
	a.nk.MetricsCounterAdd(name, tags, delta)
}

func (a *NakamaMetricsAdapter) SetGauge(name string, tags map[string]string, value float64) {
	a.nk.MetricsGaugeSet(name, tags, value)
}

// RecordEvent hands the event to Nakama's event pipeline, which dispatches asynchronously.
func (a *NakamaMetricsAdapter) RecordEvent(ctx context.Context, name string, properties map[string]string) {
	evt := &api.Event{
		Name:       name,
		Properties: properties,
		Timestamp:  timestamppb.Now(),
	}
	if err := a.nk.Event(ctx, evt); err != nil {
		a.logger.Warn("RecordEvent: %s dropped: %v", name, err)
	}
}

var _ ports.MetricsPort = (*NakamaMetricsAdapter)(nil)

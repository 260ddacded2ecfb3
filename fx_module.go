package spanz

import (
	"context"

	"github.com/zoobzio/clockz"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// FXModule provides a *Tracer and its prometheus *Metrics to an fx
// application. A Config must be supplied; a *zap.Logger and a
// clockz.Clock are used when present in the graph.
//
//	app := fx.New(
//	    spanz.FXModule,
//	    fx.Supply(spanz.DefaultConfig()),
//	)
var FXModule = fx.Module("spanz",
	fx.Provide(
		NewFromParams,
		NewMetrics,
	),
	fx.Invoke(RegisterTracerLifecycle),
)

// Params are the fx dependencies of NewFromParams.
type Params struct {
	fx.In

	Config Config
	Logger *zap.Logger  `optional:"true"`
	Clock  clockz.Clock `optional:"true"`
}

// NewFromParams builds a tracer from fx-injected dependencies.
func NewFromParams(p Params) (*Tracer, error) {
	return New(WithConfig(p.Config), WithLogger(p.Logger), WithClock(p.Clock))
}

// RegisterTracerLifecycle reports spans still in flight when the
// application stops. Those spans were never released and their slots
// are leaked.
func RegisterTracerLifecycle(lc fx.Lifecycle, tracer *Tracer) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			stats := tracer.Stats()
			if stats.Live > 0 {
				tracer.logger.Warn("spans still in flight at shutdown",
					zap.Int("spans.live", stats.Live),
				)
			}
			tracer.logger.Info("tracer stopped",
				zap.Uint64("spans.finished", stats.Finished),
				zap.Uint64("spans.dropped", stats.Dropped),
			)
			return nil
		},
	})
}

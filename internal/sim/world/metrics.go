package world

import "time"

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Players int  `json:"players"`
	Clients int  `json:"clients"`
	Tiles   int  `json:"tiles"`
	Paused  bool `json:"paused"`

	TickRateHz  int         `json:"tick_rate_hz"`
	AvgPeriodMS float64     `json:"avg_period_ms"`
	StepMS      float64     `json:"step_ms"`
	DirtyCaches int         `json:"dirty_caches"`
	OpenOffers  int         `json:"open_offers"`
	QueueDepths QueueDepths `json:"queue_depths"`
}

type QueueDepths struct {
	Inbox  int `json:"inbox"`
	Join   int `json:"join"`
	Leave  int `json:"leave"`
	Attach int `json:"attach"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) publishMetrics(step time.Duration) {
	m := WorldMetrics{
		Tick:        w.tick.Load(),
		Players:     len(w.players),
		Clients:     len(w.clients),
		Tiles:       len(w.tiles),
		Paused:      w.paused,
		TickRateHz:  int(w.clock.Rate()),
		AvgPeriodMS: float64(w.clock.Average()) / float64(time.Millisecond),
		StepMS:      float64(step) / float64(time.Millisecond),
		QueueDepths: QueueDepths{
			Inbox:  len(w.inbox),
			Join:   len(w.join),
			Leave:  len(w.leave),
			Attach: len(w.attach),
		},
	}
	for _, p := range w.players {
		if p.Econ.Dirty() {
			m.DirtyCaches++
		}
		for _, offers := range p.Econ.Ledger().Outbound {
			m.OpenOffers += len(offers)
		}
	}
	w.metrics.Store(m)
}

// Package metrics exposes what a cell does as Prometheus metrics. The
// Collector is a hook: attach it to the scheduler, the MAC and the PHY.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sarchlab/nrmac/gnbmac"
	"github.com/sarchlab/nrmac/harq"
	"github.com/sarchlab/nrmac/phyabs"
	"github.com/sarchlab/nrmac/phymac"
	"github.com/sarchlab/nrmac/scheduler"
	"github.com/sarchlab/nrmac/sim"
)

// Collector counts grants, HARQ outcomes, dropped feedback and decoded
// transport blocks.
type Collector struct {
	gatherer prometheus.Gatherer

	Grants           *prometheus.CounterVec
	GrantedBytes     *prometheus.CounterVec
	SymbolsAllocated *prometheus.HistogramVec
	HarqFeedback     *prometheus.CounterVec
	FeedbackDropped  *prometheus.CounterVec
	FeedbackDrained  *prometheus.CounterVec
	RandomAccess     prometheus.Counter
	Slots            *prometheus.CounterVec
	TransportBlocks  *prometheus.CounterVec
	DeliveredBytes   *prometheus.CounterVec
}

// NewCollector registers the metrics against the registerer. A nil
// registerer means the default one.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}

	var err error

	c.Grants, err = registerCounterVec(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nrmac_grants_total",
			Help: "Data grants issued by the scheduler.",
		}, []string{"direction", "transmission"}), "nrmac_grants_total")
	if err != nil {
		return nil, err
	}

	c.GrantedBytes, err = registerCounterVec(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nrmac_granted_bytes_total",
			Help: "Transport block bytes granted by the scheduler.",
		}, []string{"direction"}), "nrmac_granted_bytes_total")
	if err != nil {
		return nil, err
	}

	c.SymbolsAllocated, err = registerHistogramVec(reg, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nrmac_symbols_allocated",
			Help:    "Symbols used by one trigger, control included.",
			Buckets: prometheus.LinearBuckets(0, 2, 8),
		}, []string{"direction"}), "nrmac_symbols_allocated")
	if err != nil {
		return nil, err
	}

	c.HarqFeedback, err = registerCounterVec(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nrmac_harq_feedback_total",
			Help: "HARQ feedback by how it was handled.",
		}, []string{"direction", "result"}), "nrmac_harq_feedback_total")
	if err != nil {
		return nil, err
	}

	c.FeedbackDropped, err = registerCounterVec(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nrmac_feedback_dropped_total",
			Help: "Feedback records the scheduler could not use.",
		}, []string{"kind", "reason"}), "nrmac_feedback_dropped_total")
	if err != nil {
		return nil, err
	}

	c.FeedbackDrained, err = registerCounterVec(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nrmac_feedback_drained_total",
			Help: "Feedback records consumed by triggers.",
		}, []string{"direction"}), "nrmac_feedback_drained_total")
	if err != nil {
		return nil, err
	}

	c.RandomAccess, err = registerCounter(reg, prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nrmac_random_access_responses_total",
			Help: "Random access responses sent.",
		}), "nrmac_random_access_responses_total")
	if err != nil {
		return nil, err
	}

	c.Slots, err = registerCounterVec(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nrmac_slots_total",
			Help: "Slots processed by the MAC.",
		}, []string{"slot_type"}), "nrmac_slots_total")
	if err != nil {
		return nil, err
	}

	c.TransportBlocks, err = registerCounterVec(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nrmac_transport_blocks_total",
			Help: "Transport blocks decoded by the PHY.",
		}, []string{"direction", "outcome"}), "nrmac_transport_blocks_total")
	if err != nil {
		return nil, err
	}

	c.DeliveredBytes, err = registerCounterVec(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nrmac_delivered_bytes_total",
			Help: "Bytes of correctly decoded transport blocks.",
		}, []string{"direction"}), "nrmac_delivered_bytes_total")
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.gatherer
}

// Handler serves the metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Func updates the metrics from a hook event.
func (c *Collector) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case scheduler.HookPosDlScheduled:
		c.observePlan(ctx.Item.(scheduler.ScheduledItem), phymac.DL)
	case scheduler.HookPosUlScheduled:
		c.observePlan(ctx.Item.(scheduler.ScheduledItem), phymac.UL)
	case scheduler.HookPosHarqFeedback:
		out := ctx.Item.(harq.FeedbackOutcome)
		c.HarqFeedback.
			WithLabelValues(out.Feedback.Direction.String(), out.Result.String()).
			Inc()
	case scheduler.HookPosFeedbackDropped:
		drop := ctx.Item.(scheduler.DroppedFeedback)
		c.FeedbackDropped.WithLabelValues(string(drop.Kind), drop.Reason).Inc()
	case scheduler.HookPosFeedbackDrained:
		counts := ctx.Item.(scheduler.FeedbackCounts)
		dir := ctx.Detail.(phymac.Direction)
		c.FeedbackDrained.WithLabelValues(dir.String()).Add(float64(counts.Total()))
	case gnbmac.HookPosSlotDone:
		item := ctx.Item.(gnbmac.SlotItem)
		c.Slots.WithLabelValues(item.SlotType.String()).Inc()
	case phyabs.HookPosTbDecoded:
		c.observeTb(ctx.Item.(phyabs.TbOutcome))
	}
}

func (c *Collector) observePlan(item scheduler.ScheduledItem, dir phymac.Direction) {
	d := dir.String()

	c.SymbolsAllocated.WithLabelValues(d).Observe(float64(item.Plan.NumSymAlloc()))
	c.RandomAccess.Add(float64(len(item.Rars)))

	for _, a := range item.Plan.DataAllocations(dir) {
		tx := "new"
		if !a.Dci.IsNewData(0) {
			tx = "retx"
		}

		c.Grants.WithLabelValues(d, tx).Inc()
		c.GrantedBytes.WithLabelValues(d).Add(float64(a.Dci.TotalTbSize()))
	}
}

func (c *Collector) observeTb(o phyabs.TbOutcome) {
	d := o.Direction.String()
	if !o.Ok {
		c.TransportBlocks.WithLabelValues(d, "error").Inc()
		return
	}

	c.TransportBlocks.WithLabelValues(d, "ok").Inc()
	c.DeliveredBytes.WithLabelValues(d).Add(float64(o.Bytes))
}

func registerCounterVec(
	reg prometheus.Registerer,
	vec *prometheus.CounterVec,
	name string,
) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}

			return nil, fmt.Errorf(
				"collector %s already registered with incompatible type", name)
		}

		return nil, err
	}

	return vec, nil
}

func registerHistogramVec(
	reg prometheus.Registerer,
	vec *prometheus.HistogramVec,
	name string,
) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}

			return nil, fmt.Errorf(
				"collector %s already registered with incompatible type", name)
		}

		return nil, err
	}

	return vec, nil
}

func registerCounter(
	reg prometheus.Registerer,
	counter prometheus.Counter,
	name string,
) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}

			return nil, fmt.Errorf(
				"collector %s already registered with incompatible type", name)
		}

		return nil, err
	}

	return counter, nil
}

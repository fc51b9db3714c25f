// Package jobs holds background jobs scheduled with cron.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/umalmyha/customer-records/internal/model"
)

// StatisticsSource collects customers statistics
type StatisticsSource interface {
	Statistics(context.Context) (*model.Statistics, error)
}

// StatisticsExporter publishes customers statistics as prometheus gauges
type StatisticsExporter struct {
	source    StatisticsSource
	logger    logrus.FieldLogger
	timeout   time.Duration
	total     prometheus.Gauge
	recent    prometheus.Gauge
	byCountry *prometheus.GaugeVec
}

// NewStatisticsExporter builds exporter and registers its gauges in reg
func NewStatisticsExporter(
	source StatisticsSource,
	reg prometheus.Registerer,
	logger logrus.FieldLogger,
	timeout time.Duration,
) (*StatisticsExporter, error) {
	e := &StatisticsExporter{
		source:  source,
		logger:  logger.WithField("job", "statistics"),
		timeout: timeout,
		total: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "customers_total",
			Help: "Total number of customers.",
		}),
		recent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "customers_new",
			Help: "Number of customers created within the last 30 days.",
		}),
		byCountry: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "customers_by_country",
			Help: "Number of customers per country.",
		}, []string{"country"}),
	}

	for _, c := range []prometheus.Collector{e.total, e.recent, e.byCountry} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Refresh collects statistics and replaces published values
func (e *StatisticsExporter) Refresh(ctx context.Context) error {
	stats, err := e.source.Statistics(ctx)
	if err != nil {
		return err
	}

	e.total.Set(float64(stats.TotalCount))
	e.recent.Set(float64(stats.NewCount))

	e.byCountry.Reset()
	for _, c := range stats.Countries {
		e.byCountry.WithLabelValues(c.Name).Set(float64(c.Value))
	}
	return nil
}

func (e *StatisticsExporter) run() {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	if err := e.Refresh(ctx); err != nil {
		e.logger.Errorf("failed to refresh statistics - %v", err)
		return
	}
	e.logger.Debug("statistics refreshed")
}

// Schedule refreshes exporter once and starts cron scheduler running refresh on schedule
func Schedule(schedule string, exporter *StatisticsExporter) (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc(schedule, exporter.run); err != nil {
		return nil, fmt.Errorf("failed to schedule statistics refresh %q - %w", schedule, err)
	}

	// gauges are published before the first tick
	exporter.run()

	c.Start()
	return c, nil
}

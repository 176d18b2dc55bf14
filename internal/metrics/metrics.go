// Package metrics exports upload and submit counters to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "casas"

// Observer implements service.UploadObserver and service.SubmitObserver.
type Observer struct {
	assets        *prometheus.CounterVec
	assetDuration *prometheus.HistogramVec
	dropped       prometheus.Counter
	submits       *prometheus.CounterVec
}

// NewObserver registers the collectors on reg, or the default registerer
// when reg is nil. Registering twice reuses the existing collectors.
func NewObserver(reg prometheus.Registerer) (*Observer, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	var err error
	o := &Observer{}
	if o.assets, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "image_assets_total",
		Help:      "Images processed by the upload pipeline, by result.",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if o.assetDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "image_asset_duration_seconds",
		Help:      "Time to encode and store a single image.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if o.dropped, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "image_assets_dropped_total",
		Help:      "Images rejected because the listing was already at its image limit.",
	})); err != nil {
		return nil, err
	}
	if o.submits, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "listing_submits_total",
		Help:      "Listing draft submissions, by result.",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Observer) ObserveAsset(result string, elapsed time.Duration) {
	o.assets.WithLabelValues(result).Inc()
	o.assetDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (o *Observer) ObserveDropped(n int) {
	o.dropped.Add(float64(n))
}

func (o *Observer) ObserveSubmit(result string) {
	o.submits.WithLabelValues(result).Inc()
}

// Handler serves the metrics gathered by g, or the default gatherer when g
// is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register collector: %w", err)
	}
	return c, nil
}

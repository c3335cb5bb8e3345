// Package prometheus implements an OutputWriter that exposes collected
// samples as Prometheus gauges, registering one GaugeVec per distinct Query
// rather than a fixed set of package-level metrics, since the set of
// queries is only known at config load/reload time.
package prometheus

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vpbank/beanpoller/models"
)

// Config controls Writer behaviour.
type Config struct {
	// Namespace prefixes every metric name (default "beanpoller").
	Namespace string

	// Registerer receives every GaugeVec this writer creates. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// Writer implements models.OutputWriter by maintaining one GaugeVec per
// Query.Pattern, labeled by server and attribute. Safe for concurrent use.
type Writer struct {
	cfg Config

	mu     sync.Mutex
	gauges map[string]*prometheus.GaugeVec // keyed by Query.Pattern
}

// New constructs a Writer. Gauges are registered lazily on first Write for
// each distinct query pattern, since Start happens before any query has run.
func New(cfg Config) *Writer {
	if cfg.Namespace == "" {
		cfg.Namespace = "beanpoller"
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	return &Writer{
		cfg:    cfg,
		gauges: make(map[string]*prometheus.GaugeVec),
	}
}

// Start is a no-op; gauges are registered lazily per query pattern.
func (w *Writer) Start(_ context.Context) error { return nil }

// ValidateSetup always succeeds: any (server, query) pair can be represented
// as Prometheus labels.
func (w *Writer) ValidateSetup(_ models.Server, _ models.Query) error { return nil }

// Write records each Result as a gauge sample labeled by server and
// attribute. Only numeric values (int, int64, uint, uint32, uint64, float32,
// float64) can be represented as a gauge; non-numeric Results are skipped.
func (w *Writer) Write(_ context.Context, server models.Server, query models.Query, results []models.Result) error {
	if len(results) == 0 {
		return nil
	}

	gv, err := w.gaugeFor(query)
	if err != nil {
		return err
	}

	for _, r := range results {
		f, ok := toFloat(r.Value)
		if !ok {
			continue
		}
		gv.WithLabelValues(server.DisplayName(), r.Attribute).Set(f)
	}
	return nil
}

// Close unregisters every GaugeVec this writer created.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, gv := range w.gauges {
		w.cfg.Registerer.Unregister(gv)
	}
	w.gauges = make(map[string]*prometheus.GaugeVec)
	return nil
}

func (w *Writer) gaugeFor(query models.Query) (*prometheus.GaugeVec, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if gv, ok := w.gauges[query.Pattern]; ok {
		return gv, nil
	}

	gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: w.cfg.Namespace,
		Name:      sanitizeMetricName(query.Pattern),
		Help:      fmt.Sprintf("Collected values for query pattern %q", query.Pattern),
	}, []string{"server", "attribute"})

	if err := w.cfg.Registerer.Register(gv); err != nil {
		if existing, ok2 := err.(prometheus.AlreadyRegisteredError); ok2 {
			gv = existing.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, fmt.Errorf("writer/prometheus: register %q: %w", query.Pattern, err)
		}
	}
	w.gauges[query.Pattern] = gv
	return gv, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// sanitizeMetricName converts an OID-like pattern (".1.3.6.1.2.1.2") into a
// Prometheus-legal metric name suffix (e.g. "oid__1_3_6_1_2_1_2"; every
// non-alphanumeric byte, including a leading ".", becomes "_").
func sanitizeMetricName(pattern string) string {
	if pattern == "" {
		return "query"
	}
	out := make([]byte, 0, len(pattern)+4)
	out = append(out, "oid_"...)
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

var _ models.OutputWriter = (*Writer)(nil)

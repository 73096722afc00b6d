// Package telemetry records HTTP server metrics for the dashboard and serves
// them in the Prometheus text exposition format at /metrics.
package telemetry

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// MetricsPath is where Handler is mounted. Requests to it are not recorded.
const MetricsPath = "/metrics"

// unmatchedRoute labels requests no route matched, keeping raw paths out of
// the label set.
const unmatchedRoute = "unmatched"

var defaultDurationBuckets = []float64{
	0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0, 10.0,
}

// ---------------------------------------------------------------------------
// Histogram
// ---------------------------------------------------------------------------

// histogram stores non-cumulative bucket counts; cumulative counts are
// computed at export time.
type histogram struct {
	boundaries   []float64
	bucketCounts []int64
	count        int64
	sum          uint64 // math.Float64bits
	mu           sync.Mutex
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{
		boundaries:   boundaries,
		bucketCounts: make([]int64, len(boundaries)),
	}
}

// Observe records a single value.
func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	atomicAddFloat64(&h.sum, v)

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, b := range h.boundaries {
		if v <= b {
			h.bucketCounts[i]++
			return
		}
	}
}

func (h *histogram) Count() int64 {
	return atomic.LoadInt64(&h.count)
}

func (h *histogram) Sum() float64 {
	return math.Float64frombits(atomic.LoadUint64(&h.sum))
}

func (h *histogram) cumulativeBuckets() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	cum := make([]int64, len(h.bucketCounts))
	var running int64
	for i, c := range h.bucketCounts {
		running += c
		cum[i] = running
	}
	return cum
}

func atomicAddFloat64(addr *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(addr)
		next := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(addr, old, math.Float64bits(next)) {
			return
		}
	}
}

// requestKey labels one request series.
type requestKey struct {
	Method string
	Route  string
	Status int
}

func (k requestKey) labels() string {
	return fmt.Sprintf("method=%q,route=%q,status_code=%q", k.Method, k.Route, strconv.Itoa(k.Status))
}

// GaugeFunc is sampled at scrape time.
type GaugeFunc func() float64

type gauge struct {
	name string
	help string
	fn   GaugeFunc
}

// ---------------------------------------------------------------------------
// Provider
// ---------------------------------------------------------------------------

// Provider owns the metric series of one server.
type Provider struct {
	enabled bool
	active  int64

	mu       sync.RWMutex
	requests map[requestKey]*histogram

	gaugeMu sync.Mutex
	gauges  []gauge
}

// NewProvider returns a provider. A disabled provider's middleware is a
// pass-through and its handler serves only the registered gauges.
func NewProvider(enabled bool) *Provider {
	return &Provider{
		enabled:  enabled,
		requests: make(map[requestKey]*histogram),
	}
}

// RegisterGauge adds a gauge sampled by fn on every scrape. name must be a
// valid Prometheus metric name.
func (p *Provider) RegisterGauge(name, help string, fn GaugeFunc) {
	p.gaugeMu.Lock()
	defer p.gaugeMu.Unlock()
	p.gauges = append(p.gauges, gauge{name: name, help: help, fn: fn})
}

func (p *Provider) series(k requestKey) *histogram {
	p.mu.RLock()
	h, ok := p.requests[k]
	p.mu.RUnlock()
	if ok {
		return h
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok = p.requests[k]; !ok {
		h = newHistogram(defaultDurationBuckets)
		p.requests[k] = h
	}
	return h
}

// RequestCount returns the number of recorded requests for one series.
func (p *Provider) RequestCount(method, route string, status int) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if h, ok := p.requests[requestKey{method, route, status}]; ok {
		return h.Count()
	}
	return 0
}

// ActiveRequests returns the number of requests in flight.
func (p *Provider) ActiveRequests() int64 {
	return atomic.LoadInt64(&p.active)
}

// Middleware records request duration by method, route pattern and status.
func (p *Provider) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !p.enabled || c.Request().URL.Path == MetricsPath {
				return next(c)
			}

			atomic.AddInt64(&p.active, 1)
			start := time.Now()

			err := next(c)

			atomic.AddInt64(&p.active, -1)

			status := statusOf(c, err)
			route := c.Path()
			if route == "" || status == http.StatusNotFound {
				route = unmatchedRoute
			}
			key := requestKey{Method: c.Request().Method, Route: route, Status: status}
			p.series(key).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// statusOf is the status the error handler will write for err.
func statusOf(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return http.StatusInternalServerError
}

// ---------------------------------------------------------------------------
// Exposition
// ---------------------------------------------------------------------------

// Handler serves all series in the Prometheus text format.
func (p *Provider) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder
		p.writeRequests(&b)

		b.WriteString("# HELP http_server_active_requests Number of active HTTP requests.\n")
		b.WriteString("# TYPE http_server_active_requests gauge\n")
		fmt.Fprintf(&b, "http_server_active_requests %d\n\n", p.ActiveRequests())

		p.gaugeMu.Lock()
		gauges := append([]gauge(nil), p.gauges...)
		p.gaugeMu.Unlock()
		for _, g := range gauges {
			fmt.Fprintf(&b, "# HELP %s %s\n", g.name, g.help)
			fmt.Fprintf(&b, "# TYPE %s gauge\n", g.name)
			fmt.Fprintf(&b, "%s %g\n\n", g.name, g.fn())
		}

		return c.Blob(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
	}
}

func (p *Provider) writeRequests(b *strings.Builder) {
	const name = "http_server_request_duration_seconds"

	p.mu.RLock()
	keys := make([]requestKey, 0, len(p.requests))
	for k := range p.requests {
		keys = append(keys, k)
	}
	p.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Route != keys[j].Route {
			return keys[i].Route < keys[j].Route
		}
		if keys[i].Method != keys[j].Method {
			return keys[i].Method < keys[j].Method
		}
		return keys[i].Status < keys[j].Status
	})

	fmt.Fprintf(b, "# HELP %s Duration of HTTP requests in seconds.\n", name)
	fmt.Fprintf(b, "# TYPE %s histogram\n", name)
	for _, k := range keys {
		writeHistogram(b, name, k.labels(), p.series(k))
	}
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, name, labels string, h *histogram) {
	cum := h.cumulativeBuckets()
	total := h.Count()
	for i, boundary := range h.boundaries {
		fmt.Fprintf(b, "%s_bucket{%s,le=\"%g\"} %d\n", name, labels, boundary, cum[i])
	}
	fmt.Fprintf(b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, total)
	fmt.Fprintf(b, "%s_sum{%s} %g\n", name, labels, h.Sum())
	fmt.Fprintf(b, "%s_count{%s} %d\n", name, labels, total)
}

package metrics

import (
	"cmp"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// route 标识一个按路由模式与方法聚合的请求序列。
type route struct {
	handler string
	method  string
}

type requestKey struct {
	route
	code string
}

func compareRoute(a, b route) int {
	return cmp.Or(cmp.Compare(a.handler, b.handler), cmp.Compare(a.method, b.method))
}

var httpBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

type collector struct {
	mu       sync.Mutex
	requests map[requestKey]uint64
	errors   map[route]uint64
	latency  map[route]*histogram
}

var httpCollector = newCollector()

func newCollector() *collector {
	return &collector{
		requests: make(map[requestKey]uint64),
		errors:   make(map[route]uint64),
		latency:  make(map[route]*histogram),
	}
}

// ObserveHTTPRequest records one finished request under its route pattern.
func ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	httpCollector.observe(handler, method, status, duration)
}

func (c *collector) observe(handler, method string, status int, duration time.Duration) {
	r := route{handler: handler, method: method}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests[requestKey{route: r, code: strconv.Itoa(status)}]++
	if status >= 500 {
		c.errors[r]++
	}
	hist, ok := c.latency[r]
	if !ok {
		hist = newHistogram(httpBuckets)
		c.latency[r] = hist
	}
	hist.observe(duration.Seconds())
}

// Handler exposes HTTP and proof pipeline metrics in Prometheus text exposition format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = fmt.Fprint(w, httpCollector.render())
		_, _ = fmt.Fprint(w, proofCollector.render())
	})
}

func (c *collector) render() string {
	c.mu.Lock()
	requests := make(map[requestKey]uint64, len(c.requests))
	for k, v := range c.requests {
		requests[k] = v
	}
	errs := make(map[route]uint64, len(c.errors))
	for k, v := range c.errors {
		errs[k] = v
	}
	latency := make(map[route]histogram, len(c.latency))
	for k, h := range c.latency {
		latency[k] = h.snapshot()
	}
	c.mu.Unlock()

	var b strings.Builder
	b.Grow(1024)

	total := newFamily(&b, "zkpong_http_requests_total", "counter", "Total number of HTTP requests processed.")
	reqKeys := slices.SortedFunc(maps.Keys(requests), func(x, y requestKey) int {
		return cmp.Or(compareRoute(x.route, y.route), cmp.Compare(x.code, y.code))
	})
	for _, k := range reqKeys {
		total.sample(labels{"handler", k.handler, "method", k.method, "code", k.code}, requests[k])
	}

	failed := newFamily(&b, "zkpong_http_request_errors_total", "counter", "Total number of HTTP requests that resulted in a server error.")
	for _, r := range slices.SortedFunc(maps.Keys(errs), compareRoute) {
		failed.sample(labels{"handler", r.handler, "method", r.method}, errs[r])
	}

	duration := newFamily(&b, "zkpong_http_request_duration_seconds", "histogram", "HTTP request duration in seconds.")
	for _, r := range slices.SortedFunc(maps.Keys(latency), compareRoute) {
		duration.histogram(labels{"handler", r.handler, "method", r.method}, latency[r])
	}
	return b.String()
}

package metrics

import (
	"fmt"
	"strconv"
	"strings"
)

// histogram 是累积桶直方图，counts[i] 记录不大于 buckets[i] 的观测次数。
type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: append([]float64(nil), buckets...),
		counts:  make([]uint64, len(buckets)),
	}
}

// observe 累加所有上界不小于 value 的桶；超出最后一个桶的值只计入 count（+Inf）。
func (h *histogram) observe(value float64) {
	h.count++
	h.sum += value
	for i := len(h.buckets) - 1; i >= 0 && value <= h.buckets[i]; i-- {
		h.counts[i]++
	}
}

func (h *histogram) snapshot() histogram {
	return histogram{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

// family 负责写出一个指标族的 HELP/TYPE 头以及样本行。
type family struct {
	b    *strings.Builder
	name string
}

func newFamily(b *strings.Builder, name, kind, help string) family {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
	return family{b: b, name: name}
}

func (f family) sample(l labels, value uint64) {
	fmt.Fprintf(f.b, "%s%s %d\n", f.name, l, value)
}

func (f family) histogram(l labels, h histogram) {
	for i, bound := range h.buckets {
		fmt.Fprintf(f.b, "%s_bucket%s %d\n", f.name, l.with("le", formatFloat(bound)), h.counts[i])
	}
	fmt.Fprintf(f.b, "%s_bucket%s %d\n", f.name, l.with("le", "+Inf"), h.count)
	fmt.Fprintf(f.b, "%s_sum%s %s\n", f.name, l, formatFloat(h.sum))
	fmt.Fprintf(f.b, "%s_count%s %d\n", f.name, l, h.count)
}

// labels 是按声明顺序输出的标签对，偶数位为名称、奇数位为值。
type labels []string

func (l labels) with(name, value string) labels {
	return append(append(labels(nil), l...), name, value)
}

func (l labels) String() string {
	if len(l) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('{')
	for i := 0; i+1 < len(l); i += 2 {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=\"%s\"", l[i], escape(l[i+1]))
	}
	b.WriteByte('}')
	return b.String()
}

func escape(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "\n", "")
	return value
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

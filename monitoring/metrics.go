package monitoring

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// MetricType 指标类型
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// maxSamples 每个指标保留的样本数
const maxSamples = 1000

// Metric 指标
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Help      string            `json:"help,omitempty"`
}

// MetricsCollector 指标收集器
type MetricsCollector struct {
	metrics     map[string][]*Metric
	counters    map[string]float64
	metricsLock sync.RWMutex

	startTime time.Time
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics:   make(map[string][]*Metric),
		counters:  make(map[string]float64),
		startTime: time.Now(),
		stop:      make(chan struct{}),
	}
}

// Start 启动系统指标收集
func (mc *MetricsCollector) Start(interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go mc.collectSystemMetrics(interval)
}

// Stop 停止系统指标收集
func (mc *MetricsCollector) Stop() {
	mc.stopOnce.Do(func() { close(mc.stop) })
}

// RecordMetric 记录指标
func (mc *MetricsCollector) RecordMetric(metric *Metric) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()

	metric.Timestamp = time.Now()
	mc.metrics[metric.Name] = append(mc.metrics[metric.Name], metric)

	// 限制历史大小
	if len(mc.metrics[metric.Name]) > maxSamples {
		mc.metrics[metric.Name] = mc.metrics[metric.Name][100:]
	}
}

// IncrCounter 增加计数器，计数按名称和标签累计
func (mc *MetricsCollector) IncrCounter(name string, value float64, labels map[string]string) {
	key := seriesKey(name, labels)

	mc.metricsLock.Lock()
	mc.counters[key] += value
	mc.metricsLock.Unlock()

	mc.RecordMetric(&Metric{
		Name:   name,
		Type:   MetricTypeCounter,
		Value:  value,
		Labels: labels,
	})
}

// Counter 获取计数器当前值
func (mc *MetricsCollector) Counter(name string, labels map[string]string) float64 {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()
	return mc.counters[seriesKey(name, labels)]
}

// SetGauge 设置仪表
func (mc *MetricsCollector) SetGauge(name string, value float64, labels map[string]string) {
	mc.RecordMetric(&Metric{
		Name:   name,
		Type:   MetricTypeGauge,
		Value:  value,
		Labels: labels,
	})
}

// RecordHistogram 记录直方图样本
func (mc *MetricsCollector) RecordHistogram(name string, value float64, labels map[string]string) {
	mc.RecordMetric(&Metric{
		Name:   name,
		Type:   MetricTypeHistogram,
		Value:  value,
		Labels: labels,
	})
}

// ObserveRequest 记录一次HTTP请求
func (mc *MetricsCollector) ObserveRequest(route string, status int, duration time.Duration) {
	labels := map[string]string{"route": route, "status": fmt.Sprintf("%d", status)}
	mc.IncrCounter("http_requests_total", 1, labels)
	mc.RecordHistogram("http_request_duration_ms", float64(duration.Microseconds())/1000, map[string]string{"route": route})
}

// GetMetric 获取指标
func (mc *MetricsCollector) GetMetric(name string) ([]*Metric, error) {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	metrics, ok := mc.metrics[name]
	if !ok {
		return nil, fmt.Errorf("metric %s not found", name)
	}

	// 返回副本
	result := make([]*Metric, len(metrics))
	for i, m := range metrics {
		metricCopy := *m
		result[i] = &metricCopy
	}
	return result, nil
}

// GetMetricSummary 获取指标摘要
func (mc *MetricsCollector) GetMetricSummary(name string) (map[string]interface{}, error) {
	metrics, err := mc.GetMetric(name)
	if err != nil {
		return nil, err
	}
	if len(metrics) == 0 {
		return map[string]interface{}{"name": name, "count": 0}, nil
	}

	minValue, maxValue, sum := metrics[0].Value, metrics[0].Value, 0.0
	for _, m := range metrics {
		sum += m.Value
		if m.Value < minValue {
			minValue = m.Value
		}
		if m.Value > maxValue {
			maxValue = m.Value
		}
	}

	return map[string]interface{}{
		"name":      name,
		"type":      metrics[0].Type,
		"count":     len(metrics),
		"latest":    metrics[len(metrics)-1].Value,
		"min":       minValue,
		"max":       maxValue,
		"average":   sum / float64(len(metrics)),
		"timestamp": metrics[len(metrics)-1].Timestamp,
	}, nil
}

// Snapshot 导出所有指标摘要和计数器
func (mc *MetricsCollector) Snapshot() map[string]interface{} {
	mc.metricsLock.RLock()
	names := make([]string, 0, len(mc.metrics))
	for name := range mc.metrics {
		names = append(names, name)
	}
	counters := make(map[string]float64, len(mc.counters))
	for k, v := range mc.counters {
		counters[k] = v
	}
	mc.metricsLock.RUnlock()
	sort.Strings(names)

	summaries := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		if summary, err := mc.GetMetricSummary(name); err == nil {
			summaries = append(summaries, summary)
		}
	}

	return map[string]interface{}{
		"uptime":   mc.GetUptime().String(),
		"counters": counters,
		"metrics":  summaries,
		"system":   mc.GetSystemStats(),
	}
}

// GetUptime 获取运行时间
func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

// GetSystemStats 获取系统统计
func (mc *MetricsCollector) GetSystemStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"goroutines": runtime.NumGoroutine(),
		"heap_alloc": m.HeapAlloc,
		"heap_sys":   m.HeapSys,
		"gc_count":   m.NumGC,
		"num_cpu":    runtime.NumCPU(),
	}
}

// collectSystemMetrics 收集系统指标
func (mc *MetricsCollector) collectSystemMetrics(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-mc.stop:
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			mc.SetGauge("memory_heap_alloc", float64(m.HeapAlloc), nil)
			mc.SetGauge("system_goroutines", float64(runtime.NumGoroutine()), nil)
		}
	}
}

// seriesKey 生成形如 name{k="v",...} 的序列键
func seriesKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%q", k, labels[k])
	}
	return name + "{" + strings.Join(parts, ",") + "}"
}

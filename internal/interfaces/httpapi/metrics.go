package httpapi

import (
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "ckbrelay"

// Metrics implements both the relay and the audit observers; each process
// fills in the half it runs. Every update lands in a private Prometheus
// registry and in the in-memory snapshot.
type Metrics struct {
	mu               sync.RWMutex
	startTime        time.Time
	tipBlock         uint64
	lastRelayed      uint64
	lastBatchFrom    uint64
	lastBatchTo      uint64
	headersRelayed   uint64
	cellsRelayed     uint64
	rollbacks        uint64
	rolledBackBlocks uint64
	callsAudited     uint64
	callsRejected    uint64
	kafkaFetchErrs   uint64
	kafkaLastTopic   string
	kafkaLastOffset  int64
	kafkaBytes       uint64
	kafkaTopicCount  map[string]uint64
	controlCalls     uint64

	registry         *prometheus.Registry
	tipGauge         prometheus.Gauge
	lastRelayedGauge prometheus.Gauge
	batchFromGauge   prometheus.Gauge
	batchToGauge     prometheus.Gauge
	headersTotal     prometheus.Counter
	cellsTotal       prometheus.Counter
	rollbacksTotal   prometheus.Counter
	rolledBackTotal  prometheus.Counter
	controlTotal     prometheus.Counter
	auditedTotal     prometheus.Counter
	rejectedTotal    prometheus.Counter
	fetchErrsTotal   prometheus.Counter
	kafkaBytesTotal  prometheus.Counter
	topicMessages    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		startTime:       time.Now(),
		kafkaTopicCount: make(map[string]uint64),
		registry:        prometheus.NewRegistry(),
	}
	factory := promauto.With(m.registry)

	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{Namespace: metricsNamespace, Name: name, Help: help})
	}
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{Namespace: metricsNamespace, Name: name, Help: help})
	}

	m.tipGauge = gauge("tip_block", "Latest CKB tip block seen by the relayer")
	m.lastRelayedGauge = gauge("last_relayed_block", "Highest block whose calls were published")
	m.batchFromGauge = gauge("last_batch_from", "First block of the last relayed batch")
	m.batchToGauge = gauge("last_batch_to", "Last block of the last relayed batch")
	m.headersTotal = counter("headers_relayed_total", "Headers published to the light-client topic")
	m.cellsTotal = counter("cells_relayed_total", "Cells published to the image-cell topic")
	m.rollbacksTotal = counter("rollbacks_total", "Reorgs handled by the relayer")
	m.rolledBackTotal = counter("rolled_back_blocks_total", "Blocks rolled back after reorgs")
	m.controlTotal = counter("control_calls_total", "Control calls published through the API")
	m.auditedTotal = counter("calls_audited_total", "Call messages read by the auditor")
	m.rejectedTotal = counter("calls_rejected_total", "Call messages whose payload failed verification")
	m.fetchErrsTotal = counter("kafka_fetch_errors_total", "Kafka fetch errors seen by the auditor")
	m.kafkaBytesTotal = counter("kafka_bytes_total", "Bytes of call messages read by the auditor")
	m.topicMessages = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "kafka_topic_messages_total",
		Help:      "Call messages read per topic",
	}, []string{"topic"})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "uptime_seconds",
		Help:      "Seconds since the process started",
	}, func() float64 {
		return time.Since(m.startTime).Seconds()
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "block_lag",
		Help:      "Blocks between the tip and the last relayed block",
	}, func() float64 {
		snap := m.Snapshot()
		if snap.TipBlock <= snap.LastRelayed {
			return 0
		}
		return float64(snap.TipBlock - snap.LastRelayed)
	})
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) OnTipBlock(block uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tipBlock = block
	m.tipGauge.Set(float64(block))
}

func (m *Metrics) OnBatchRelayed(fromBlock, toBlock uint64, headers, cells int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLastRelayed(toBlock)
	m.lastBatchFrom = fromBlock
	m.lastBatchTo = toBlock
	m.headersRelayed += uint64(headers)
	m.cellsRelayed += uint64(cells)
	m.batchFromGauge.Set(float64(fromBlock))
	m.batchToGauge.Set(float64(toBlock))
	m.headersTotal.Add(float64(headers))
	m.cellsTotal.Add(float64(cells))
}

func (m *Metrics) OnRollback(fromBlock uint64, blocks int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollbacks++
	m.rolledBackBlocks += uint64(blocks)
	m.rollbacksTotal.Inc()
	m.rolledBackTotal.Add(float64(blocks))
	if fromBlock == 0 {
		m.setLastRelayed(0)
	} else if m.lastRelayed >= fromBlock {
		m.setLastRelayed(fromBlock - 1)
	}
}

func (m *Metrics) SetLastRelayed(block uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLastRelayed(block)
}

// setLastRelayed requires m.mu.
func (m *Metrics) setLastRelayed(block uint64) {
	m.lastRelayed = block
	m.lastRelayedGauge.Set(float64(block))
}

func (m *Metrics) OnCallAudited(topic string, partition int, offset int64, size int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callsAudited++
	m.auditedTotal.Inc()
	if !ok {
		m.callsRejected++
		m.rejectedTotal.Inc()
	}
	m.kafkaLastTopic = topic
	m.kafkaLastOffset = offset
	m.kafkaBytes += uint64(size)
	m.kafkaBytesTotal.Add(float64(size))
	if topic != "" {
		m.kafkaTopicCount[topic]++
		m.topicMessages.WithLabelValues(topic).Inc()
	}
}

func (m *Metrics) OnFetchError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaFetchErrs++
	m.fetchErrsTotal.Inc()
}

func (m *Metrics) IncControlCall() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.controlCalls++
	m.controlTotal.Inc()
}

type Snapshot struct {
	StartTime        time.Time
	TipBlock         uint64
	LastRelayed      uint64
	LastBatchFrom    uint64
	LastBatchTo      uint64
	HeadersRelayed   uint64
	CellsRelayed     uint64
	Rollbacks        uint64
	RolledBackBlocks uint64
	CallsAudited     uint64
	CallsRejected    uint64
	KafkaFetchErrs   uint64
	KafkaLastTopic   string
	KafkaLastOffset  int64
	KafkaBytes       uint64
	KafkaTopicCount  map[string]uint64
	ControlCalls     uint64
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		StartTime:        m.startTime,
		TipBlock:         m.tipBlock,
		LastRelayed:      m.lastRelayed,
		LastBatchFrom:    m.lastBatchFrom,
		LastBatchTo:      m.lastBatchTo,
		HeadersRelayed:   m.headersRelayed,
		CellsRelayed:     m.cellsRelayed,
		Rollbacks:        m.rollbacks,
		RolledBackBlocks: m.rolledBackBlocks,
		CallsAudited:     m.callsAudited,
		CallsRejected:    m.callsRejected,
		KafkaFetchErrs:   m.kafkaFetchErrs,
		KafkaLastTopic:   m.kafkaLastTopic,
		KafkaLastOffset:  m.kafkaLastOffset,
		KafkaBytes:       m.kafkaBytes,
		KafkaTopicCount:  maps.Clone(m.kafkaTopicCount),
		ControlCalls:     m.controlCalls,
	}
}

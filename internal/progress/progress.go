// Package progress implements the Progress Tracker (C15): it accumulates
// per-document and per-project counters across a run, logs a periodic
// summary through slog, and optionally mirrors its counters to Redis (for a
// separate dashboard process) and Prometheus (for scraping by the admin
// sidecar).
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/bcgov/epic-search-embedder/internal/model"
)

// activeDocument is what the summary prints for a worker currently running.
type activeDocument struct {
	name      string
	pages     int
	hasPages  bool
	sizeMB    float64
	hasSizeMB bool
}

// Metrics holds the Prometheus collectors a Tracker updates. Registration
// is the caller's responsibility (internal/middleware.NewMetrics follows
// the same shape for the HTTP-facing metrics).
type Metrics struct {
	DocumentsTotal  *prometheus.CounterVec
	PagesTotal      prometheus.Counter
	ActiveWorkers   prometheus.Gauge
	DocumentSeconds prometheus.Histogram
}

// NewMetrics creates and registers the run-level Prometheus collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DocumentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedder_documents_total",
				Help: "Documents processed, labeled by terminal status.",
			},
			[]string{"status"},
		),
		PagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "embedder_pages_total",
			Help: "Total pages extracted across all processed documents.",
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "embedder_active_workers",
			Help: "Number of worker subprocesses currently processing a document.",
		}),
		DocumentSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "embedder_document_duration_seconds",
			Help:    "Wall-clock time to process one document.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}
	reg.MustRegister(m.DocumentsTotal, m.PagesTotal, m.ActiveWorkers, m.DocumentSeconds)
	return m
}

// Tracker accumulates progress counters for one run and periodically prints
// a summary, mirroring utils/progress_tracker.py's ProgressTracker.
type Tracker struct {
	mu sync.Mutex

	startTime      time.Time
	totalProjects  int
	totalDocuments int
	processedProj  int
	processedDocs  int
	failedDocs     int
	skippedDocs    int
	currentProject string
	active         map[int]activeDocument
	totalPages     int64
	totalSizeMB    float64

	summaryInterval time.Duration
	stopCh          chan struct{}
	stopped         bool

	redisClient *redis.Client
	redisKey    string
	metrics     *Metrics
}

// Option configures optional Tracker behavior.
type Option func(*Tracker)

// WithRedisMirror mirrors the run's counters to a Redis hash after each
// periodic summary, for a separate dashboard process to read. Grounded on
// the teacher's worker-side redis.NewClient(&redis.Options{Addr: ...}) use.
func WithRedisMirror(client *redis.Client, key string) Option {
	return func(t *Tracker) {
		t.redisClient = client
		t.redisKey = key
	}
}

// WithMetrics wires the Tracker to a set of registered Prometheus
// collectors, updated on every start/finish event.
func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// WithSummaryInterval overrides the default 30-second periodic summary.
func WithSummaryInterval(d time.Duration) Option {
	return func(t *Tracker) { t.summaryInterval = d }
}

// New creates a Tracker. Call Start to begin a run.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		active:          make(map[int]activeDocument),
		summaryInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins a run: resets counters, prints the startup banner, and
// launches the background periodic-summary goroutine.
func (t *Tracker) Start(ctx context.Context, totalProjects, totalDocuments int) {
	t.mu.Lock()
	t.startTime = time.Now()
	t.totalProjects = totalProjects
	t.totalDocuments = totalDocuments
	t.processedProj = 0
	t.processedDocs = 0
	t.failedDocs = 0
	t.skippedDocs = 0
	t.active = make(map[int]activeDocument)
	t.stopCh = make(chan struct{})
	t.stopped = false
	t.mu.Unlock()

	slog.Info("embedder started", "scope_projects", totalProjects, "scope_documents", totalDocuments)

	go t.periodicSummary(ctx)
}

// UpdateCurrentProject records the project name shown in the next summary.
func (t *Tracker) UpdateCurrentProject(name string) {
	t.mu.Lock()
	t.currentProject = name
	t.mu.Unlock()
}

// StartDocument registers that a worker picked up a document. It implements
// dispatcher.ProgressReporter.
func (t *Tracker) StartDocument(workerSlot int, task model.DocumentTask) {
	t.mu.Lock()
	t.active[workerSlot] = activeDocument{name: task.CatalogDoc.Name}
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.ActiveWorkers.Inc()
	}
}

// FinishDocument registers that a worker finished a document, with an
// optional page/size readout for throughput accounting. It implements
// dispatcher.ProgressReporter.
func (t *Tracker) FinishDocument(workerSlot int, status model.ProcessingStatus) {
	t.FinishDocumentWithStats(workerSlot, status, 0, 0)
}

// FinishDocumentWithStats is FinishDocument plus page/size throughput data,
// for callers that have that information; FinishDocument passes zero pages
// and size.
func (t *Tracker) FinishDocumentWithStats(workerSlot int, status model.ProcessingStatus, pages int, sizeMB float64) {
	t.mu.Lock()
	delete(t.active, workerSlot)
	switch status {
	case model.StatusSuccess:
		t.processedDocs++
		t.totalPages += int64(pages)
		t.totalSizeMB += sizeMB
	case model.StatusSkipped:
		t.skippedDocs++
	default:
		t.failedDocs++
	}
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.DocumentsTotal.WithLabelValues(string(status)).Inc()
		t.metrics.ActiveWorkers.Dec()
		if pages > 0 {
			t.metrics.PagesTotal.Add(float64(pages))
		}
	}
}

// FinishProject marks one project as completed.
func (t *Tracker) FinishProject() {
	t.mu.Lock()
	t.processedProj++
	t.mu.Unlock()
}

// Stop ends the run, stopping the periodic summary goroutine and printing a
// final summary.
func (t *Tracker) Stop(reason string) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	close(t.stopCh)
	hadStart := !t.startTime.IsZero()
	t.mu.Unlock()

	if hadStart {
		t.logSummary(reason, true)
	}
}

func (t *Tracker) periodicSummary(ctx context.Context) {
	ticker := time.NewTicker(t.summaryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.logSummary("", false)
			if t.redisClient != nil {
				t.mirrorToRedis(ctx)
			}
		}
	}
}

func (t *Tracker) logSummary(reason string, final bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.startTime.IsZero() {
		return
	}

	elapsed := time.Since(t.startTime)
	totalProcessed := t.processedDocs + t.failedDocs + t.skippedDocs

	var docsPerHour float64
	var eta string
	if elapsed.Seconds() > 0 {
		docsPerHour = (float64(totalProcessed) / elapsed.Seconds()) * 3600
		if totalProcessed > 0 {
			etaSeconds := (float64(t.totalDocuments-totalProcessed) / float64(totalProcessed)) * elapsed.Seconds()
			eta = time.Duration(etaSeconds * float64(time.Second)).Round(time.Second).String()
		} else {
			eta = "unknown"
		}
	} else {
		eta = "unknown"
	}

	args := []any{
		"runtime", elapsed.Round(time.Second).String(),
		"projects", fmt.Sprintf("%d/%d", t.processedProj, t.totalProjects),
		"documents", fmt.Sprintf("%d/%d", totalProcessed, t.totalDocuments),
		"success", t.processedDocs, "failed", t.failedDocs, "skipped", t.skippedDocs,
		"docs_per_hour", fmt.Sprintf("%.1f", docsPerHour),
		"eta", eta,
		"active_workers", len(t.active),
	}
	if t.currentProject != "" {
		args = append(args, "current_project", t.currentProject)
	}
	if t.totalPages > 0 {
		args = append(args, "pages_processed", t.totalPages)
	}
	if t.totalSizeMB > 0 {
		args = append(args, "mb_processed", fmt.Sprintf("%.1f", t.totalSizeMB))
	}
	if len(t.active) > 0 {
		args = append(args, "active_documents", activeDocumentsSummary(t.active))
	}

	if final {
		if reason == "" {
			reason = "completed"
		}
		args = append(args, "reason", reason)
		slog.Info("embedder completed", args...)
		return
	}
	slog.Info("progress summary", args...)
}

func activeDocumentsSummary(active map[int]activeDocument) string {
	var b strings.Builder
	first := true
	for slot, doc := range active {
		if !first {
			b.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&b, "worker-%d:%s", slot, doc.name)
		switch {
		case doc.hasPages && doc.hasSizeMB:
			fmt.Fprintf(&b, "(%dp,%.1fMB)", doc.pages, doc.sizeMB)
		case doc.hasPages:
			fmt.Fprintf(&b, "(%dp)", doc.pages)
		case doc.hasSizeMB:
			fmt.Fprintf(&b, "(%.1fMB)", doc.sizeMB)
		}
	}
	return b.String()
}

// mirrorToRedis writes the current counters to a Redis hash so a separate
// dashboard process can read run progress without reading the logs.
func (t *Tracker) mirrorToRedis(ctx context.Context) {
	t.mu.Lock()
	fields := map[string]any{
		"processed_projects":  t.processedProj,
		"total_projects":      t.totalProjects,
		"processed_documents": t.processedDocs,
		"failed_documents":    t.failedDocs,
		"skipped_documents":   t.skippedDocs,
		"current_project":     t.currentProject,
		"active_workers":      len(t.active),
	}
	t.mu.Unlock()

	if err := t.redisClient.HSet(ctx, t.redisKey, fields).Err(); err != nil {
		slog.Warn("progress: redis mirror failed", "error", err)
		return
	}
	t.redisClient.Expire(ctx, t.redisKey, 24*time.Hour)
}

package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("utmbindex/telemetry")

// MeteredAPI forwards every report to an inner API and also records counts on an
// OpenTelemetry gauge, keyed by the report id.
type MeteredAPI struct {
	API
	gauge metric.Int64Gauge
}

func NewMeteredAPI(inner API) (MeteredAPI, error) {
	gauge, err := meter.Int64Gauge("report_count")
	if err != nil {
		return MeteredAPI{}, err
	}
	return MeteredAPI{API: inner, gauge: gauge}, nil
}

func (m MeteredAPI) ReportCount(id string, count int64) {
	m.API.ReportCount(id, count)
	m.gauge.Record(
		context.Background(),
		count,
		metric.WithAttributes(attribute.String("id", id)),
	)
}

// Report is a single call captured by Recorder.
type Report struct {
	Kind   string
	ID     string
	Params []any
	Count  int64
}

// Recorder keeps every report in memory so tests can assert on them.
type Recorder struct {
	mutex   sync.Mutex
	reports []Report
}

func (r *Recorder) add(report Report) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.reports = append(r.reports, report)
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.add(Report{Kind: "broken", ID: id, Params: params})
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.add(Report{Kind: "warning", ID: id, Params: params})
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.add(Report{Kind: "debug", ID: msg, Params: params})
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.add(Report{Kind: "count", ID: id, Count: count})
}

// Reports returns the captured reports of the given kind, or all of them when kind is empty.
func (r *Recorder) Reports(kind string) []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var out []Report
	for _, report := range r.reports {
		if kind == "" || report.Kind == kind {
			out = append(out, report)
		}
	}
	return out
}

// LastCount returns the most recent count reported under id.
func (r *Recorder) LastCount(id string) (int64, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i := len(r.reports) - 1; i >= 0; i-- {
		report := r.reports[i]
		if report.Kind == "count" && report.ID == id {
			return report.Count, true
		}
	}
	return 0, false
}

// Package metrics exposes runtime counters via expvar and mirrors them to the
// global OpenTelemetry meter provider.
package metrics

import (
	"context"
	"expvar"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/SocialFinanceDigitalLabs/liia-tools-sub000"

var (
	FilesProcessed   = newCounter("files_processed", "Files that reached the archive.")
	FilesFailed      = newCounter("files_failed", "Files abandoned after a fatal error.")
	ErrorsRecorded   = newCounter("errors_recorded", "Errors written to session error summaries.")
	SnapshotsWritten = newCounter("snapshots_written", "Archive snapshots written, roll-ups included.")
	RollupsWritten   = newCounter("rollups_written", "Archive roll-ups written.")
	SessionsRun      = newCounter("sessions_run", "Sessions completed.")
)

// Counter is a monotonically increasing count.
type Counter struct {
	name string
	desc string
	v    *expvar.Int

	once sync.Once
	inst metric.Int64Counter
}

func newCounter(name, desc string) *Counter {
	return &Counter{name: name, desc: desc, v: expvar.NewInt(name)}
}

// Add increments the counter by n.
func (c *Counter) Add(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	c.v.Add(n)
	c.once.Do(func() {
		inst, err := otel.Meter(meterName).Int64Counter("liia."+c.name, metric.WithDescription(c.desc))
		if err == nil {
			c.inst = inst
		}
	})
	if c.inst != nil {
		c.inst.Add(ctx, n, metric.WithAttributes(attrs...))
	}
}

// Value returns the current count.
func (c *Counter) Value() int64 {
	return c.v.Value()
}

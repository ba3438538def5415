// Package columnartest builds small Arrow batches for tests.
package columnartest

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// LogSchema is a two column log record: timestamp and message.
var LogSchema = arrow.NewSchema([]arrow.Field{
	{Name: "timestamp", Type: arrow.PrimitiveTypes.Int64},
	{Name: "message", Type: arrow.BinaryTypes.String},
}, nil)

// MetricSchema is structurally different from LogSchema.
var MetricSchema = arrow.NewSchema([]arrow.Field{
	{Name: "timestamp", Type: arrow.PrimitiveTypes.Int64},
	{Name: "value", Type: arrow.PrimitiveTypes.Float64},
}, nil)

// LogBatch returns a LogSchema batch with one row per message. Timestamps
// count up from ts.
func LogBatch(ts int64, msgs ...string) arrow.Record {
	b := array.NewRecordBuilder(memory.DefaultAllocator, LogSchema)
	defer b.Release()

	for i, m := range msgs {
		b.Field(0).(*array.Int64Builder).Append(ts + int64(i))
		b.Field(1).(*array.StringBuilder).Append(m)
	}
	return b.NewRecord()
}

// MetricBatch returns a MetricSchema batch.
func MetricBatch(ts int64, values ...float64) arrow.Record {
	b := array.NewRecordBuilder(memory.DefaultAllocator, MetricSchema)
	defer b.Release()

	for i, v := range values {
		b.Field(0).(*array.Int64Builder).Append(ts + int64(i))
		b.Field(1).(*array.Float64Builder).Append(v)
	}
	return b.NewRecord()
}

// Messages returns the message column of a LogSchema batch.
func Messages(rec arrow.Record) []string {
	col := rec.Column(1).(*array.String)
	out := make([]string, col.Len())
	for i := range out {
		out[i] = col.Value(i)
	}
	return out
}

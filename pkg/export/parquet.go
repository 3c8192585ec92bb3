package export

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/kilianp07/evsim/core/experiment"
)

func summarySchema() *arrow.Schema {
	fields := make([]arrow.Field, 0, len(KeyColumns)+len(experiment.Columns))
	for _, k := range KeyColumns {
		fields = append(fields, arrow.Field{Name: k, Type: arrow.BinaryTypes.String})
	}
	for _, c := range experiment.Columns {
		fields = append(fields, arrow.Field{Name: c, Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	}
	return arrow.NewSchema(fields, nil)
}

// WriteParquet writes rows as one snappy-compressed record batch. NaN
// becomes null. w is not closed.
func WriteParquet(w io.Writer, rows []experiment.Row) error {
	schema := summarySchema()
	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()

	for _, r := range rows {
		for i, k := range keys(r) {
			b.Field(i).(*array.StringBuilder).Append(k)
		}
		for j, v := range r.Values() {
			fb := b.Field(len(KeyColumns) + j).(*array.Float64Builder)
			if finite(v) {
				fb.Append(v)
			} else {
				fb.AppendNull()
			}
		}
	}
	rec := b.NewRecord()
	defer rec.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	fw, err := pqarrow.NewFileWriter(schema, nopCloser{w}, props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return fmt.Errorf("write record batch: %w", err)
	}
	return fw.Close()
}

// nopCloser keeps the parquet writer from closing the caller's sink.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

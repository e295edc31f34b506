// Package columnar encodes auction batches as snappy-compressed Parquet.
//
// The schema is the union of all record fields. Every column is optional so a
// record that lacks a field stores a null. A column whose values disagree on
// type across records is stored as strings, except int64 mixed with float64,
// which widens to float64.
package columnar

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/JakeFAU/carsnbids-loader/internal/auction"
)

// ContentType is the media type of an encoded batch.
const ContentType = "application/vnd.apache.parquet"

const schemaName = "auction"

type kind int

const (
	kindNull kind = iota
	kindBool
	kindInt64
	kindFloat64
	kindString
)

// Column describes one column of an encoded batch.
type Column struct {
	Name string
	kind kind
}

// Type returns the column's logical type name.
func (c Column) Type() string {
	switch c.kind {
	case kindBool:
		return "bool"
	case kindInt64:
		return "int64"
	case kindFloat64:
		return "float64"
	default:
		return "string"
	}
}

// Columns returns the union of record fields, sorted by name, with the
// storage type each will be written as. An empty input yields the url column.
func Columns(records []auction.Record) []Column {
	kinds := make(map[string]kind)
	for _, rec := range records {
		for name, value := range rec {
			_, k := normalize(value)
			prev, seen := kinds[name]
			if !seen {
				kinds[name] = k
				continue
			}
			kinds[name] = merge(prev, k)
		}
	}
	if len(kinds) == 0 {
		kinds[auction.FieldURL] = kindString
	}
	cols := make([]Column, 0, len(kinds))
	for name, k := range kinds {
		if k == kindNull {
			k = kindString
		}
		cols = append(cols, Column{Name: name, kind: k})
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })
	return cols
}

// Encode writes records to an in-memory Parquet object.
func Encode(records []auction.Record) ([]byte, error) {
	cols := Columns(records)
	group := parquet.Group{}
	for _, col := range cols {
		group[col.Name] = parquet.Optional(leaf(col.kind))
	}
	schema := parquet.NewSchema(schemaName, group)

	index := make([]int, len(cols))
	for i, col := range cols {
		lc, ok := schema.Lookup(col.Name)
		if !ok {
			return nil, fmt.Errorf("column %q missing from schema", col.Name)
		}
		index[i] = lc.ColumnIndex
	}

	rows := make([]parquet.Row, 0, len(records))
	for _, rec := range records {
		row := make(parquet.Row, len(cols))
		for i, col := range cols {
			row[index[i]] = value(col.kind, rec[col.Name]).Level(0, definition(rec, col.Name), index[i])
		}
		rows = append(rows, row)
	}

	var buf bytes.Buffer
	w := parquet.NewWriter(&buf, schema, parquet.Compression(&parquet.Snappy))
	if len(rows) > 0 {
		if _, err := w.WriteRows(rows); err != nil {
			return nil, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads an object produced by Encode and returns its columns in
// schema order. Null values are omitted from the returned records.
func Decode(data []byte) ([]Column, []auction.Record, error) {
	input := bytes.NewReader(data)
	if _, err := parquet.OpenFile(input, int64(len(data))); err != nil {
		return nil, nil, fmt.Errorf("open parquet: %w", err)
	}
	reader := parquet.NewReader(input)
	defer reader.Close()

	schema := reader.Schema()
	paths := schema.Columns()
	names := make([]string, len(paths))
	cols := make([]Column, len(paths))
	for i, path := range paths {
		if len(path) != 1 {
			return nil, nil, fmt.Errorf("unexpected nested column %v", path)
		}
		lc, ok := schema.Lookup(path...)
		if !ok {
			return nil, nil, fmt.Errorf("column %q missing from schema", path[0])
		}
		names[i] = path[0]
		cols[i] = Column{Name: path[0], kind: storedKind(lc.Node.Type().Kind())}
	}

	var records []auction.Record
	buf := make([]parquet.Row, 128)
	for {
		n, err := reader.ReadRows(buf)
		for _, row := range buf[:n] {
			rec := make(auction.Record, len(row))
			for _, v := range row {
				if v.IsNull() {
					continue
				}
				col := v.Column()
				if col < 0 || col >= len(names) {
					return nil, nil, fmt.Errorf("value for unknown column %d", col)
				}
				rec[names[col]] = scalar(v)
			}
			records = append(records, rec)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read parquet rows: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return cols, records, nil
}

func storedKind(k parquet.Kind) kind {
	switch k {
	case parquet.Boolean:
		return kindBool
	case parquet.Int32, parquet.Int64:
		return kindInt64
	case parquet.Float, parquet.Double:
		return kindFloat64
	default:
		return kindString
	}
}

func leaf(k kind) parquet.Node {
	switch k {
	case kindBool:
		return parquet.Leaf(parquet.BooleanType)
	case kindInt64:
		return parquet.Int(64)
	case kindFloat64:
		return parquet.Leaf(parquet.DoubleType)
	default:
		return parquet.String()
	}
}

func definition(rec auction.Record, name string) int {
	v, ok := rec[name]
	if !ok || v == nil {
		return 0
	}
	return 1
}

// value converts raw into the column's storage type.
func value(k kind, raw any) parquet.Value {
	v, vk := normalize(raw)
	if vk == kindNull {
		return parquet.NullValue()
	}
	if k == kindString && vk != kindString {
		return parquet.ValueOf(format(v))
	}
	if k == kindFloat64 && vk == kindInt64 {
		return parquet.ValueOf(float64(v.(int64)))
	}
	return parquet.ValueOf(v)
}

func scalar(v parquet.Value) any {
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	default:
		return string(v.ByteArray())
	}
}

// normalize maps supported Go values onto the four storage kinds.
func normalize(v any) (any, kind) {
	switch x := v.(type) {
	case nil:
		return nil, kindNull
	case string:
		return x, kindString
	case bool:
		return x, kindBool
	case int:
		return int64(x), kindInt64
	case int8:
		return int64(x), kindInt64
	case int16:
		return int64(x), kindInt64
	case int32:
		return int64(x), kindInt64
	case int64:
		return x, kindInt64
	case uint8:
		return int64(x), kindInt64
	case uint16:
		return int64(x), kindInt64
	case uint32:
		return int64(x), kindInt64
	case uint:
		if uint64(x) > math.MaxInt64 {
			return strconv.FormatUint(uint64(x), 10), kindString
		}
		return int64(x), kindInt64
	case uint64:
		if x > math.MaxInt64 {
			return strconv.FormatUint(x, 10), kindString
		}
		return int64(x), kindInt64
	case float32:
		return float64(x), kindFloat64
	case float64:
		return x, kindFloat64
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), kindString
	case fmt.Stringer:
		return x.String(), kindString
	default:
		return fmt.Sprint(x), kindString
	}
}

func merge(a, b kind) kind {
	switch {
	case a == kindNull:
		return b
	case b == kindNull, a == b:
		return a
	case (a == kindInt64 && b == kindFloat64) || (a == kindFloat64 && b == kindInt64):
		return kindFloat64
	default:
		return kindString
	}
}

func format(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

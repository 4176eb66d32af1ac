// Package columnar reads and writes frame tables as parquet files.
//
// Ordered categorical columns are stored as dictionary-encoded strings with
// int32 indices; their full category list (in rank order) is kept in the
// schema metadata so unused categories and their order survive a round trip.
package columnar

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/rotisserie/eris"

	"github.com/sells-group/obsprep/internal/frame"
)

// Ext is the file extension of every table written by this package.
const Ext = ".parquet"

// Schema metadata keys.
const (
	metaIndex      = "obsprep.index"
	metaCategories = "obsprep.categories."
)

const createdBy = "obsprep"

// CategoricalType is the arrow type of an ordered categorical column.
var CategoricalType = &arrow.DictionaryType{
	IndexType: arrow.PrimitiveTypes.Int32,
	ValueType: arrow.BinaryTypes.String,
	Ordered:   true,
}

// Write stores t at path. The file is written to a temporary sibling and
// renamed into place so readers never see a partial file.
func Write(path string, t *frame.Table) error {
	var buf bytes.Buffer
	if err := WriteTo(&buf, t); err != nil {
		return eris.Wrapf(err, "columnar: write %s", path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "columnar: create dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "columnar: create temp for %s", path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close() //nolint:errcheck,gosec
		return eris.Wrapf(err, "columnar: write temp for %s", path)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "columnar: close temp for %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "columnar: rename into %s", path)
	}
	return nil
}

// WriteTo encodes t as a parquet file on w. The output is a pure function
// of t: writing the same table twice yields identical bytes.
func WriteTo(w io.Writer, t *frame.Table) error {
	mem := memory.NewGoAllocator()

	rec, err := toRecord(mem, t)
	if err != nil {
		return err
	}
	defer rec.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithCreatedBy(createdBy),
		parquet.WithAllocator(mem),
	)
	arrProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithStoreSchema(),
		pqarrow.WithAllocator(mem),
	)

	fw, err := pqarrow.NewFileWriter(rec.Schema(), w, props, arrProps)
	if err != nil {
		return eris.Wrap(err, "columnar: create parquet writer")
	}
	if err := fw.Write(rec); err != nil {
		fw.Close() //nolint:errcheck,gosec
		return eris.Wrap(err, "columnar: write record")
	}
	if err := fw.Close(); err != nil {
		return eris.Wrap(err, "columnar: close parquet writer")
	}
	return nil
}

func toRecord(mem memory.Allocator, t *frame.Table) (arrow.Record, error) {
	var (
		fields []arrow.Field
		cols   []arrow.Array
		keys   []string
		values []string
	)
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	if t.IndexName != "" {
		b := array.NewStringBuilder(mem)
		defer b.Release()
		b.AppendValues(t.Index, nil)
		fields = append(fields, arrow.Field{Name: t.IndexName, Type: arrow.BinaryTypes.String})
		cols = append(cols, b.NewArray())
		keys = append(keys, metaIndex)
		values = append(values, t.IndexName)
	}

	for _, name := range t.Names() {
		if name == t.IndexName {
			return nil, eris.Errorf("columnar: column %q collides with the index", name)
		}
		c, _ := t.Column(name)
		arr, typ, err := toArray(mem, c)
		if err != nil {
			return nil, eris.Wrapf(err, "columnar: column %q", name)
		}
		fields = append(fields, arrow.Field{Name: name, Type: typ, Nullable: true})
		cols = append(cols, arr)

		if cat, ok := c.(*frame.Categorical); ok {
			enc, err := json.Marshal(cat.Categories)
			if err != nil {
				return nil, eris.Wrapf(err, "columnar: encode categories of %q", name)
			}
			keys = append(keys, metaCategories+name)
			values = append(values, string(enc))
		}
	}

	md := arrow.NewMetadata(keys, values)
	schema := arrow.NewSchema(fields, &md)
	return array.NewRecord(schema, cols, int64(t.Len())), nil
}

func toArray(mem memory.Allocator, c frame.Column) (arrow.Array, arrow.DataType, error) {
	switch c := c.(type) {
	case *frame.Strings:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		b.AppendValues(c.Values, c.Valid)
		return b.NewArray(), arrow.BinaryTypes.String, nil

	case *frame.Ints:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		b.AppendValues(c.Values, c.Valid)
		return b.NewArray(), arrow.PrimitiveTypes.Int64, nil

	case *frame.Floats:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.AppendValues(c.Values, c.Valid)
		return b.NewArray(), arrow.PrimitiveTypes.Float64, nil

	case *frame.Categorical:
		ib := array.NewInt32Builder(mem)
		defer ib.Release()
		for _, code := range c.Codes {
			if code < 0 {
				ib.AppendNull()
				continue
			}
			ib.Append(code)
		}
		indices := ib.NewArray()
		defer indices.Release()

		db := array.NewStringBuilder(mem)
		defer db.Release()
		db.AppendValues(c.Categories, nil)
		dict := db.NewArray()
		defer dict.Release()

		return array.NewDictionaryArray(CategoricalType, indices, dict), CategoricalType, nil

	default:
		return nil, nil, eris.Errorf("unsupported column type %T", c)
	}
}

// Read loads a table written by Write.
func Read(ctx context.Context, path string) (*frame.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "columnar: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	mem := memory.NewGoAllocator()
	tbl, err := pqarrow.ReadTable(ctx, f, parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, eris.Wrapf(err, "columnar: read %s", path)
	}
	defer tbl.Release()

	out, err := fromTable(tbl)
	if err != nil {
		return nil, eris.Wrapf(err, "columnar: decode %s", path)
	}
	return out, nil
}

func fromTable(tbl arrow.Table) (*frame.Table, error) {
	schema := tbl.Schema()
	md := schema.Metadata()
	n := int(tbl.NumRows())

	indexName := ""
	if i := md.FindKey(metaIndex); i >= 0 {
		indexName = md.Values()[i]
	}

	index := make([]string, n)
	if indexName == "" {
		for i := range index {
			index[i] = strconv.Itoa(i)
		}
	} else {
		idx := schema.FieldIndices(indexName)
		if len(idx) == 0 {
			return nil, eris.Errorf("index column %q missing", indexName)
		}
		col, err := readStrings(tbl.Column(idx[0]), n)
		if err != nil {
			return nil, eris.Wrap(err, "index")
		}
		for i := range index {
			v, ok := col.Get(i)
			if !ok {
				return nil, eris.Errorf("index column %q has a null at row %d", indexName, i)
			}
			index[i] = v
		}
	}

	out := frame.New(indexName, index)
	for i, field := range schema.Fields() {
		if indexName != "" && field.Name == indexName {
			continue
		}
		col, err := readColumn(tbl.Column(i), field, md, n)
		if err != nil {
			return nil, eris.Wrapf(err, "column %q", field.Name)
		}
		if err := out.Add(field.Name, col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readColumn(c *arrow.Column, field arrow.Field, md arrow.Metadata, n int) (frame.Column, error) {
	if k := md.FindKey(metaCategories + field.Name); k >= 0 {
		var categories []string
		if err := json.Unmarshal([]byte(md.Values()[k]), &categories); err != nil {
			return nil, eris.Wrap(err, "decode categories")
		}
		labels, err := readStrings(c, n)
		if err != nil {
			return nil, err
		}
		cat, err := frame.NewCategorical(categories, n)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			if v, ok := labels.Get(i); ok && !cat.Set(i, v) {
				return nil, eris.Errorf("row %d: %q is not a category", i, v)
			}
		}
		return cat, nil
	}

	switch field.Type.ID() {
	case arrow.STRING, arrow.LARGE_STRING, arrow.DICTIONARY:
		return readStrings(c, n)
	case arrow.INT64:
		out := frame.NewInts(n)
		row := 0
		for _, chunk := range c.Data().Chunks() {
			a := chunk.(*array.Int64)
			for i := 0; i < a.Len(); i++ {
				if a.IsValid(i) {
					out.Set(row, a.Value(i))
				}
				row++
			}
		}
		return out, nil
	case arrow.FLOAT64:
		out := frame.NewFloats(n)
		row := 0
		for _, chunk := range c.Data().Chunks() {
			a := chunk.(*array.Float64)
			for i := 0; i < a.Len(); i++ {
				if a.IsValid(i) {
					out.Set(row, a.Value(i))
				}
				row++
			}
		}
		return out, nil
	default:
		return nil, eris.Errorf("unsupported arrow type %s", field.Type)
	}
}

// readStrings flattens a string or dictionary-of-string column.
func readStrings(c *arrow.Column, n int) (*frame.Strings, error) {
	out := frame.NewStrings(n)
	row := 0
	for _, chunk := range c.Data().Chunks() {
		get, err := stringGetter(chunk)
		if err != nil {
			return nil, err
		}
		for i := 0; i < chunk.Len(); i++ {
			if chunk.IsValid(i) {
				out.Set(row, get(i))
			}
			row++
		}
	}
	if row != n {
		return nil, eris.Errorf("read %d rows, table has %d", row, n)
	}
	return out, nil
}

func stringGetter(a arrow.Array) (func(int) string, error) {
	switch a := a.(type) {
	case *array.String:
		return a.Value, nil
	case *array.LargeString:
		return a.Value, nil
	case *array.Dictionary:
		get, err := stringGetter(a.Dictionary())
		if err != nil {
			return nil, eris.Wrap(err, "dictionary values")
		}
		return func(i int) string { return get(a.GetValueIndex(i)) }, nil
	default:
		return nil, eris.Errorf("not a string array: %s", a.DataType())
	}
}

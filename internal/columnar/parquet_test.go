package columnar

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/obsprep/internal/frame"
)

func sample(t *testing.T) *frame.Table {
	t.Helper()
	tbl := frame.New("ID", []string{"r1", "r2", "r3"})

	require.NoError(t, tbl.Add("raw", frame.StringsOf([]string{"a", "", "c"})))

	ints := frame.NewInts(3)
	ints.Set(0, 33)
	ints.Set(2, -7)
	require.NoError(t, tbl.Add("age.age", ints))

	floats := frame.NewFloats(3)
	floats.Set(1, 1.25)
	require.NoError(t, tbl.Add("weight.linked_weight", floats))

	cat, err := frame.NewCategorical([]string{"Youth", "Adult", "Senior"}, 3)
	require.NoError(t, err)
	cat.Set(0, "Adult")
	cat.Set(2, "Youth")
	require.NoError(t, tbl.Add("age.age_yas", cat))
	return tbl
}

func TestWriteRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "obs2023"+Ext)
	require.NoError(t, Write(path, sample(t)))

	got, err := Read(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "ID", got.IndexName)
	assert.Equal(t, []string{"r1", "r2", "r3"}, got.Index)
	assert.Equal(t, []string{"raw", "age.age", "weight.linked_weight", "age.age_yas"}, got.Names())

	raw, err := got.Strings("raw")
	require.NoError(t, err)
	v, ok := raw.Get(0)
	assert.True(t, ok)
	assert.Equal(t, "a", v)
	assert.True(t, raw.IsNull(1))

	c, _ := got.Column("age.age")
	ages := c.(*frame.Ints)
	n, _ := ages.Get(2)
	assert.Equal(t, int64(-7), n)
	assert.True(t, ages.IsNull(1))

	c, _ = got.Column("weight.linked_weight")
	w, ok := c.(*frame.Floats).Get(1)
	assert.True(t, ok)
	assert.Equal(t, 1.25, w)

	c, _ = got.Column("age.age_yas")
	cat, ok := c.(*frame.Categorical)
	require.True(t, ok)
	// Unused "Senior" and the rank order survive.
	assert.Equal(t, []string{"Youth", "Adult", "Senior"}, cat.Categories)
	l, _ := cat.Label(0)
	assert.Equal(t, "Adult", l)
	assert.True(t, cat.IsNull(1))
}

func TestWriteTo_Deterministic(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, WriteTo(&a, sample(t)))
	require.NoError(t, WriteTo(&b, sample(t)))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestWrite_ReplacesFileAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t"+Ext)
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	require.NoError(t, Write(path, sample(t)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp file left behind")

	_, err = Read(context.Background(), path)
	require.NoError(t, err)
}

func TestWriteRead_NoIndex(t *testing.T) {
	tbl := frame.New("", []string{"651", "652"})
	ints := frame.NewInts(2)
	ints.Set(0, 651)
	ints.Set(1, 652)
	require.NoError(t, tbl.Add("route", ints))

	path := filepath.Join(t.TempDir(), "routes"+Ext)
	require.NoError(t, Write(path, tbl))

	got, err := Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "", got.IndexName)
	assert.Equal(t, []string{"0", "1"}, got.Index)
	assert.Equal(t, []string{"route"}, got.Names())
}

func TestWrite_IndexCollision(t *testing.T) {
	tbl := frame.New("ID", []string{"a"})
	require.NoError(t, tbl.Add("ID", frame.StringsOf([]string{"a"})))
	err := WriteTo(&bytes.Buffer{}, tbl)
	assert.Error(t, err)
}

func TestRead_Missing(t *testing.T) {
	_, err := Read(context.Background(), filepath.Join(t.TempDir(), "nope"+Ext))
	assert.Error(t, err)
}

func TestRead_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad"+Ext)
	require.NoError(t, os.WriteFile(path, []byte("not parquet"), 0o644))
	_, err := Read(context.Background(), path)
	assert.Error(t, err)
}

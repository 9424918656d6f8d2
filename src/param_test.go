package main

import (
	"errors"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestParam(t *testing.T, content string) (*ParamTable, string) {
	t.Helper()
	path := writeFile(t, filepath.Join(t.TempDir(), "ArenaParam.param.xml"), content)
	p, err := LoadParamTable("ArenaParam", path, "10", "id", zerolog.Nop())
	require.NoError(t, err)
	return p, path
}

func rowIDs(t *testing.T, p *ParamTable) []int {
	t.Helper()
	var ids []int
	for _, r := range p.Rows() {
		id, err := strconv.Atoi(r.SelectAttrValue("id", ""))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestParamRoundTrip(t *testing.T) {
	content := paramXML(
		`<row id="10" paramdexName="Base &amp; Co" x="1"/>`,
		`<row id="20" paramdexName="Rusty's AC &quot;Steel&quot; > 1" x="2"/>`,
		`<row id="30" paramdexName="" x="3"/>`,
	)
	p, _ := loadTestParam(t, content)
	out, err := p.Serialize()
	require.NoError(t, err)
	assert.Equal(t, content, string(out))
}

func TestParamUpsertSorted(t *testing.T) {
	p, path := loadTestParam(t, paramXML(
		`<row id="10" paramdexName="a" x="1"/>`,
		`<row id="30" paramdexName="c" x="3"/>`,
	))
	require.NoError(t, p.Upsert(Overrides{{"id", "20"}, {"x", "2"}}))
	require.NoError(t, p.Upsert(Overrides{{"id", "40"}}))
	require.NoError(t, p.Upsert(Overrides{{"id", "5"}}))
	assert.Equal(t, []int{5, 10, 20, 30, 40}, rowIDs(t, p))

	_, err := p.Save()
	require.NoError(t, err)
	assert.Equal(t, paramXML(
		`<row id="5" paramdexName="a" x="1"/>`,
		`<row id="10" paramdexName="a" x="1"/>`,
		`<row id="20" paramdexName="a" x="2"/>`,
		`<row id="30" paramdexName="c" x="3"/>`,
		`<row id="40" paramdexName="a" x="1"/>`,
	), readFile(t, path))
}

func TestParamUpsertReplacesDuplicate(t *testing.T) {
	p, _ := loadTestParam(t, paramXML(
		`<row id="10" paramdexName="a" x="1"/>`,
		`<row id="30" paramdexName="c" x="3"/>`,
	))
	require.NoError(t, p.Upsert(Overrides{{"id", "30"}, {"x", "9"}}))
	assert.Equal(t, []int{10, 30}, rowIDs(t, p))
	assert.Equal(t, "9", p.Entry(30).SelectAttrValue("x", ""))
	assert.Equal(t, "a", p.Entry(30).SelectAttrValue("paramdexName", ""))
	out, err := p.Serialize()
	require.NoError(t, err)
	assert.Equal(t, paramXML(
		`<row id="10" paramdexName="a" x="1"/>`,
		`<row id="30" paramdexName="a" x="9"/>`,
	), string(out))
}

func TestParamUpsertUnknownField(t *testing.T) {
	p, _ := loadTestParam(t, paramXML(`<row id="10" x="1"/>`))
	require.NoError(t, p.Upsert(Overrides{{"id", "11"}, {"noSuchField", "1"}}))
	row := p.Entry(11)
	require.NotNil(t, row)
	assert.Nil(t, row.SelectAttr("noSuchField"))
}

func TestParamUpsertNeedsID(t *testing.T) {
	p, _ := loadTestParam(t, paramXML(`<row id="10" x="1"/>`))
	assert.True(t, errors.Is(p.Upsert(Overrides{{"x", "2"}}), ErrInput))
	assert.True(t, errors.Is(p.Upsert(Overrides{{"id", "abc"}}), ErrInput))
}

func TestParamBaselineByField(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "ArenaParam.param.xml"), paramXML(
		`<row id="1" charaInitParamId="3019" x="a"/>`,
		`<row id="2" charaInitParamId="3020" x="b"/>`,
	))
	p, err := LoadParamTable("ArenaParam", path, "3020", "charaInitParamId", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "b", p.Baseline("x"))

	_, err = LoadParamTable("ArenaParam", path, "1", "charaInitParamId", zerolog.Nop())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestOverrides(t *testing.T) {
	var o Overrides
	o.Set("id", 1)
	o.Set("name", "x")
	o.Set("id", 2)
	assert.Equal(t, Overrides{{"id", "2"}, {"name", "x"}}, o)
	v, ok := o.Get("id")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
	_, ok = o.Get("missing")
	assert.False(t, ok)
}

package main

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestText(t *testing.T, content string) *TextTable {
	t.Helper()
	path := writeFile(t, filepath.Join(t.TempDir(), "NPC名.fmg.xml"), content)
	tt, err := LoadTextTable("TitleCharacters", path)
	require.NoError(t, err)
	return tt
}

func TestTextRoundTrip(t *testing.T) {
	content := fmgXML(
		`<text id="1">Hello</text>`,
		`<text id="2">%null%</text>`,
		`<text id="3">Let's go, "pilot" &gt; you &amp; me</text>`,
	)
	tt := loadTestText(t, content)
	out, err := tt.Serialize()
	require.NoError(t, err)
	assert.Equal(t, content, string(out))
}

func TestTextUpsertReplaces(t *testing.T) {
	tt := loadTestText(t, fmgXML(`<text id="1">Hello</text>`))
	tt.Upsert("A", 5, 7)
	tt.Upsert("B", 5)

	assert.Equal(t, 1, entryCount(tt, 5))
	assert.Equal(t, 1, entryCount(tt, 7))
	v, ok := tt.Text(5)
	assert.True(t, ok)
	assert.Equal(t, "B", v)
	v, _ = tt.Text(7)
	assert.Equal(t, "A", v)
	v, _ = tt.Text(1)
	assert.Equal(t, "Hello", v)
	_, ok = tt.Text(6)
	assert.False(t, ok)

	out, err := tt.Serialize()
	require.NoError(t, err)
	assert.Equal(t, fmgXML(
		`<text id="1">Hello</text>`,
		`<text id="7">A</text>`,
		`<text id="5">B</text>`,
	), string(out))
}

func TestTextUpsertNormalizes(t *testing.T) {
	tt := loadTestText(t, fmgXML(`<text id="1">x</text>`))
	tt.Upsert("Cafe\u0301", 2)
	v, _ := tt.Text(2)
	assert.Equal(t, "Caf\u00e9", v)
}

func TestFmgPath(t *testing.T) {
	p, err := fmgPath("mod", "TitleCharacters")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("mod", "msg", "engus", "item-msgbnd-dcx", "NPC名.fmg.xml"), p)
	_, err = fmgPath("mod", "Nope")
	assert.ErrorIs(t, err, ErrInput)
}

// entryCount returns how many entries carry id.
func entryCount(tt *TextTable, id int) int {
	n := 0
	for _, e := range tt.entries.SelectElements("text") {
		if e.SelectAttrValue("id", "") == strconv.Itoa(id) {
			n++
		}
	}
	return n
}

func TestTextUpsertKeepsQuotes(t *testing.T) {
	tt := loadTestText(t, fmgXML(`<text id="1">Hello</text>`))
	tt.Upsert(`Rusty's "Steel Haze"`, 9001)
	out, err := tt.Serialize()
	require.NoError(t, err)
	assert.Contains(t, string(out), `<text id="9001">Rusty's "Steel Haze"</text>`)
}

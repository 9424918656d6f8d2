package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/unicode/norm"
)

// fmgSource locates a text table inside the unpacked message archives.
type fmgSource struct {
	Archive string // archive under msg/engus
	Name    string // member name without .fmg.xml
}

// Text tables the compile writes to.
var fmgSources = map[string]fmgSource{
	"TalkMsg":         {Archive: "menu.msgbnd.dcx", Name: "会話"},
	"RankerProfile":   {Archive: "menu.msgbnd.dcx", Name: "ランカープロフィール"},
	"TitleCharacters": {Archive: "item.msgbnd.dcx", Name: "NPC名"},
	"MenuText":        {Archive: "menu.msgbnd.dcx", Name: "FNR_メニューテキスト"},
}

var msgArchives = []string{"menu.msgbnd.dcx", "item.msgbnd.dcx"}

const msgRelDir = "msg/engus"

// TextTable is a localized text table: <fmg><entries><text id="..">..</text>.
type TextTable struct {
	Name    string
	path    string
	doc     *etree.Document
	entries *etree.Element
}

func LoadTextTable(name, path string) (*TextTable, error) {
	doc, err := readXML(path)
	if err != nil {
		return nil, err
	}
	entries, err := requireElement(doc, "fmg", "entries")
	if err != nil {
		return nil, fmt.Errorf("%v: %w", name, err)
	}
	return &TextTable{Name: name, path: path, doc: doc, entries: entries}, nil
}

// Upsert gives every id in ids the text. Existing entries for those ids are
// removed first, so an id never appears twice.
func (t *TextTable) Upsert(text string, ids ...int) {
	text = norm.NFC.String(text)
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[strconv.Itoa(id)] = true
	}
	for _, e := range t.entries.SelectElements("text") {
		if want[e.SelectAttrValue("id", "")] {
			removeChild(e)
		}
	}
	for _, id := range ids {
		e := etree.NewElement("text")
		e.CreateAttr("id", strconv.Itoa(id))
		e.SetText(text)
		appendChild(t.entries, e)
	}
}

// Text returns the text of id and whether it exists.
func (t *TextTable) Text(id int) (string, bool) {
	key := strconv.Itoa(id)
	for _, e := range t.entries.SelectElements("text") {
		if e.SelectAttrValue("id", "") == key {
			return e.Text(), true
		}
	}
	return "", false
}

func (t *TextTable) Serialize() ([]byte, error) {
	return t.doc.WriteToBytes()
}

func (t *TextTable) Save() (string, error) {
	return t.path, writeXML(t.doc, t.path)
}

func fmgPath(modDir, name string) (string, error) {
	src, ok := fmgSources[name]
	if !ok {
		return "", fmt.Errorf("%w: unknown text table %v", ErrInput, name)
	}
	return filepath.Join(modDir, msgRelDir, strings.ReplaceAll(src.Archive, ".", "-"), src.Name+".fmg.xml"), nil
}

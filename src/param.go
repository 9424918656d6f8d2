package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
)

// ParamTable is one unpacked parameter class: <param><rows><row id=".." ../>.
// New rows are clones of a baseline row with some fields overridden.
type ParamTable struct {
	Name     string
	path     string
	doc      *etree.Document
	rows     *etree.Element
	baseline *etree.Element
	log      zerolog.Logger
}

// LoadParamTable parses path and picks the baseline row whose keyField
// equals baselineKey.
func LoadParamTable(name, path string, baselineKey string, keyField string, log zerolog.Logger) (*ParamTable, error) {
	doc, err := readXML(path)
	if err != nil {
		return nil, err
	}
	rows, err := requireElement(doc, "param", "rows")
	if err != nil {
		return nil, fmt.Errorf("%v: %w", name, err)
	}
	p := &ParamTable{Name: name, path: path, doc: doc, rows: rows, log: log}
	for _, row := range rows.SelectElements("row") {
		if row.SelectAttrValue(keyField, "") == baselineKey {
			p.baseline = row.Copy()
			break
		}
	}
	if p.baseline == nil {
		return nil, fmt.Errorf("%w: %v has no row with %v=%v", ErrNotFound, name, keyField, baselineKey)
	}
	return p, nil
}

// Baseline returns a field of the template row.
func (p *ParamTable) Baseline(field string) string {
	return p.baseline.SelectAttrValue(field, "")
}

// Entry looks a row up by id.
func (p *ParamTable) Entry(id int) *etree.Element {
	key := strconv.Itoa(id)
	for _, row := range p.rows.SelectElements("row") {
		if row.SelectAttrValue("id", "") == key {
			return row
		}
	}
	return nil
}

// Rows returns the rows in document order.
func (p *ParamTable) Rows() []*etree.Element {
	return p.rows.SelectElements("row")
}

// Upsert clones the baseline, applies overrides and inserts the result
// keeping rows sorted by id. Overrides must carry "id". Fields the baseline
// row does not have are reported and left out. A row that already has the
// id is replaced.
func (p *ParamTable) Upsert(overrides Overrides) error {
	idStr, ok := overrides.Get("id")
	if !ok {
		return fmt.Errorf("%w: %v row without id", ErrInput, p.Name)
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return fmt.Errorf("%w: %v row id %q is not a number", ErrInput, p.Name, idStr)
	}

	row := p.baseline.Copy()
	for _, kv := range overrides {
		if row.SelectAttr(kv.Key) == nil {
			p.log.Warn().Str("param", p.Name).Str("field", kv.Key).Int("id", id).
				Msg("override field not in schema, ignored")
			continue
		}
		setAttr(row, kv.Key, kv.Value)
	}

	if old := p.Entry(id); old != nil {
		p.log.Warn().Str("param", p.Name).Int("id", id).Msg("row id already present, replaced")
		insertBefore(old, row)
		removeChild(old)
		return nil
	}
	for _, r := range p.rows.SelectElements("row") {
		rid, err := strconv.Atoi(r.SelectAttrValue("id", ""))
		if err == nil && id < rid {
			insertBefore(r, row)
			return nil
		}
	}
	appendChild(p.rows, row)
	return nil
}

// Serialize renders the document.
func (p *ParamTable) Serialize() ([]byte, error) {
	return p.doc.WriteToBytes()
}

// Save writes the xml back in place and returns its path.
func (p *ParamTable) Save() (string, error) {
	return p.path, writeXML(p.doc, p.path)
}

func paramPath(regulationDir, name string) string {
	return filepath.Join(regulationDir, name+".param.xml")
}

type Override struct {
	Key   string
	Value string
}

// Overrides is an ordered field -> value list; later keys win.
type Overrides []Override

func (o Overrides) Get(key string) (string, bool) {
	for i := len(o) - 1; i >= 0; i-- {
		if o[i].Key == key {
			return o[i].Value, true
		}
	}
	return "", false
}

// Set replaces key in place or appends it.
func (o *Overrides) Set(key string, value interface{}) {
	v := fmt.Sprint(value)
	for i := range *o {
		if (*o)[i].Key == key {
			(*o)[i].Value = v
			return
		}
	}
	*o = append(*o, Override{Key: key, Value: v})
}

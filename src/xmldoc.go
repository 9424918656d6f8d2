package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/beevik/etree"
)

// readXML parses a document keeping every token, so writing it back
// unchanged reproduces the input.
func readXML(path string) (*etree.Document, error) {
	doc := etree.NewDocument()
	setWriteSettings(doc)
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("failed to read %v: %w", path, err)
	}
	return doc, nil
}

// setWriteSettings limits escaping to what XML requires, so quotes and
// apostrophes in text and attribute values are written as they were read.
func setWriteSettings(doc *etree.Document) {
	doc.WriteSettings.CanonicalText = true
	doc.WriteSettings.CanonicalAttrVal = true
}

func writeXML(doc *etree.Document, path string) error {
	b, err := doc.WriteToBytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// newXMLDocument starts a generated document with the usual declaration.
func newXMLDocument() *etree.Document {
	doc := etree.NewDocument()
	setWriteSettings(doc)
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	return doc
}

// indentBefore returns the whitespace that precedes el in its parent.
func indentBefore(el *etree.Element) string {
	p := el.Parent()
	if p == nil {
		return ""
	}
	if i := el.Index(); i > 0 {
		if cd, ok := p.Child[i-1].(*etree.CharData); ok && isBlank(cd) {
			return cd.Data
		}
	}
	return ""
}

// childIndent guesses the indentation for a new child of parent from its
// existing element children, or from the parent's own indentation.
func childIndent(parent *etree.Element) string {
	if kids := parent.ChildElements(); len(kids) > 0 {
		return indentBefore(kids[0])
	}
	if in := indentBefore(parent); in != "" {
		return in + "  "
	}
	return "\n  "
}

// insertBefore puts el in front of ref, repeating ref's indentation.
func insertBefore(ref, el *etree.Element) {
	parent := ref.Parent()
	ws := indentBefore(ref)
	i := ref.Index()
	parent.InsertChildAt(i, el)
	if ws != "" {
		parent.InsertChildAt(i+1, etree.NewText(ws))
	}
}

// insertAfter puts el behind ref, repeating ref's indentation.
func insertAfter(ref, el *etree.Element) {
	parent := ref.Parent()
	ws := indentBefore(ref)
	i := ref.Index() + 1
	if ws != "" {
		parent.InsertChildAt(i, etree.NewText(ws))
		i++
	}
	parent.InsertChildAt(i, el)
}

// appendChild adds el as the last element child of parent, keeping the
// closing tag's indentation in place.
func appendChild(parent, el *etree.Element) {
	kids := parent.ChildElements()
	if len(kids) > 0 {
		insertAfter(kids[len(kids)-1], el)
		return
	}
	ws := childIndent(parent)
	closing := strings.TrimSuffix(ws, "  ")
	for len(parent.Child) > 0 {
		parent.RemoveChildAt(0)
	}
	parent.AddChild(etree.NewText(ws))
	parent.AddChild(el)
	parent.AddChild(etree.NewText(closing))
}

// removeChild drops el together with the whitespace in front of it.
func removeChild(el *etree.Element) {
	parent := el.Parent()
	if parent == nil {
		return
	}
	i := el.Index()
	parent.RemoveChildAt(i)
	if i > 0 {
		if cd, ok := parent.Child[i-1].(*etree.CharData); ok && isBlank(cd) {
			parent.RemoveChildAt(i - 1)
		}
	}
}

// setAttr sets key in place when present, otherwise appends it.
func setAttr(el *etree.Element, key, value string) {
	if a := el.SelectAttr(key); a != nil {
		a.Value = value
		return
	}
	el.CreateAttr(key, value)
}

// Char data created in memory carries no whitespace flag, so check the text.
func isBlank(cd *etree.CharData) bool {
	return strings.TrimSpace(cd.Data) == ""
}

// requireElement walks a path of child tags from root.
func requireElement(doc *etree.Document, path ...string) (*etree.Element, error) {
	el := &doc.Element
	for _, tag := range path {
		next := el.SelectElement(tag)
		if next == nil {
			return nil, fmt.Errorf("%w: <%v> missing under <%v>", ErrInput, tag, el.Tag)
		}
		el = next
	}
	return el, nil
}

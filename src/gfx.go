package main

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
)

const (
	rankAnchorExport = "ArenaRank_00000d"
	rankExportPrefix = "ArenaRank"
	frameMarker      = "ShowFrameTag"
	rankIconDepth    = "1"
)

// UI containers that display the arena rank icon.
var rankGFXFiles = []string{
	"01_texteffect_hi.gfx",
	"02_acarena_preparing.gfx",
	"02_acarena_select.gfx",
	"02_npcarenaresult.gfx",
}

var rankNameRe = regexp.MustCompile(`_(\d+)\.png$`)

// rankImage is a layout entry that belongs to a rank, and the character id it
// is given once defined in the container.
type rankImage struct {
	Filename    string
	Rank        int
	CharacterID int
}

func (r rankImage) exportName() string {
	return strings.TrimSuffix(r.Filename, ".png")
}

// rankImages picks the entries whose names end in _<rank>.png.
func rankImages(layout *TextureAtlas) []rankImage {
	var out []rankImage
	for _, st := range layout.SubTextures {
		m := rankNameRe.FindStringSubmatch(st.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, rankImage{Filename: st.Name, Rank: n})
	}
	return out
}

func attrInt(el *etree.Element, key string) (int, bool) {
	a := el.SelectAttr(key)
	if a == nil {
		return 0, false
	}
	n, err := strconv.Atoi(a.Value)
	return n, err == nil
}

func tagType(el *etree.Element) string {
	return el.SelectAttrValue("type", "")
}

// nextCharacterBase returns the first round hundred above every allocated
// character id.
func nextCharacterBase(tags []*etree.Element) int {
	highest := 0
	for _, t := range tags {
		if n, ok := attrInt(t, "characterID"); ok && n > highest {
			highest = n
		}
	}
	return (highest/100 + 1) * 100
}

func newExternalImage(r rankImage) *etree.Element {
	el := etree.NewElement("item")
	id := strconv.Itoa(r.CharacterID)
	name := r.exportName()
	el.CreateAttr("type", "DefineExternalImage2")
	el.CreateAttr("bitmapFormat", "13")
	el.CreateAttr("characterID", id)
	el.CreateAttr("exportName", name)
	el.CreateAttr("fileName", name+".tga")
	el.CreateAttr("forceWriteAsLong", "false")
	el.CreateAttr("imageID", id)
	el.CreateAttr("targetHeight", "128")
	el.CreateAttr("targetWidth", "232")
	el.CreateAttr("unknownID", "0")
	return el
}

func newRemoveObject() *etree.Element {
	el := etree.NewElement("item")
	el.CreateAttr("type", "RemoveObject2Tag")
	el.CreateAttr("depth", rankIconDepth)
	el.CreateAttr("forceWriteAsLong", "false")
	return el
}

// newPlaceObject places characterID at the rank icon depth, offset to the
// icon's anchor. indent is the whitespace in front of the new tag.
func newPlaceObject(characterID int, indent string) *etree.Element {
	el := etree.NewElement("item")
	for _, kv := range [][2]string{
		{"type", "PlaceObject3Tag"},
		{"bitmapCache", "0"},
		{"blendMode", "0"},
		{"characterId", strconv.Itoa(characterID)},
		{"clipDepth", "0"},
		{"depth", rankIconDepth},
		{"forceWriteAsLong", "true"},
		{"placeFlagHasBlendMode", "false"},
		{"placeFlagHasCacheAsBitmap", "false"},
		{"placeFlagHasCharacter", "true"},
		{"placeFlagHasClassName", "false"},
		{"placeFlagHasClipActions", "false"},
		{"placeFlagHasClipDepth", "false"},
		{"placeFlagHasColorTransform", "false"},
		{"placeFlagHasFilterList", "false"},
		{"placeFlagHasImage", "true"},
		{"placeFlagHasMatrix", "true"},
		{"placeFlagHasName", "false"},
		{"placeFlagHasRatio", "false"},
		{"placeFlagHasVisible", "false"},
		{"placeFlagMove", "false"},
		{"placeFlagOpaqueBackground", "false"},
		{"ratio", "0"},
		{"reserved", "false"},
		{"visible", "0"},
	} {
		el.CreateAttr(kv[0], kv[1])
	}
	m := etree.NewElement("matrix")
	for _, kv := range [][2]string{
		{"type", "MATRIX"},
		{"hasRotate", "false"},
		{"hasScale", "false"},
		{"nRotateBits", "0"},
		{"nScaleBits", "0"},
		{"nTranslateBits", "13"},
		{"rotateSkew0", "0"},
		{"rotateSkew1", "0"},
		{"scaleX", "0"},
		{"scaleY", "0"},
		{"translateX", "-2320"},
		{"translateY", "-1280"},
	} {
		m.CreateAttr(kv[0], kv[1])
	}
	if indent != "" {
		el.AddChild(etree.NewText(indent + "  "))
		el.AddChild(m)
		el.AddChild(etree.NewText(indent))
	} else {
		el.AddChild(m)
	}
	return el
}

// symbolNames maps character ids to their exported class names.
func symbolNames(tags []*etree.Element) map[int]string {
	names := make(map[int]string)
	for _, t := range tags {
		if tagType(t) != "SymbolClassTag" {
			continue
		}
		var ids, syms []*etree.Element
		if e := t.SelectElement("tags"); e != nil {
			ids = e.SelectElements("item")
		}
		if e := t.SelectElement("names"); e != nil {
			syms = e.SelectElements("item")
		}
		for i := 0; i < len(ids) && i < len(syms); i++ {
			if id, err := strconv.Atoi(strings.TrimSpace(ids[i].Text())); err == nil {
				names[id] = syms[i].Text()
			}
		}
	}
	return names
}

// nthFrameMarker returns the n-th (1-based) frame marker of a sprite.
func nthFrameMarker(subTags *etree.Element, n int) *etree.Element {
	seen := 0
	for _, t := range subTags.SelectElements("item") {
		if tagType(t) == frameMarker {
			seen++
			if seen == n {
				return t
			}
		}
	}
	return nil
}

// patchRankSprite shows each rank's image on the frame of that rank: a
// remove and a place go in front of marker rank+1. The anchor is placed
// back in front of marker max(rank)+2. Markers are located by ordinal each
// time, inserted tags are never markers.
func patchRankSprite(sprite *etree.Element, images map[int]int, anchorID int) {
	subTags := sprite.SelectElement("subTags")
	if subTags == nil || len(images) == 0 {
		return
	}
	last := -1
	for rank := range images {
		last = max(last, rank)
	}
	markers := 0
	for _, t := range subTags.SelectElements("item") {
		if tagType(t) == frameMarker {
			markers++
		}
	}
	for n := 1; n <= markers; n++ {
		if id, ok := images[n-1]; ok {
			if m := nthFrameMarker(subTags, n); m != nil {
				insertBefore(m, newRemoveObject())
				insertBefore(m, newPlaceObject(id, indentBefore(m)))
			}
		}
		if n == last+2 {
			if m := nthFrameMarker(subTags, n); m != nil {
				insertBefore(m, newPlaceObject(anchorID, indentBefore(m)))
			}
		}
	}
}

// PatchRankDocument defines the rank images in a decompiled container and
// wires them into the rank sprite. A container without the rank anchor or
// sprite is left untouched and ErrSkipped is returned.
func PatchRankDocument(doc *etree.Document, ranks []rankImage) ([]rankImage, error) {
	root, err := requireElement(doc, "swf", "tags")
	if err != nil {
		return nil, err
	}
	tags := root.SelectElements("item")
	base := nextCharacterBase(tags)

	anchorID := -1
	var lastRank *etree.Element
	for _, t := range tags {
		if tagType(t) != "DefineExternalImage2" {
			continue
		}
		export := t.SelectAttrValue("exportName", "")
		if export == rankAnchorExport {
			anchorID, _ = attrInt(t, "characterID")
		}
		if strings.Contains(export, rankExportPrefix) {
			lastRank = t
		}
	}
	if anchorID < 0 {
		return nil, fmt.Errorf("%w: %v not found", ErrSkipped, rankAnchorExport)
	}

	names := symbolNames(tags)
	var sprite *etree.Element
	for _, t := range tags {
		if tagType(t) != "DefineSpriteTag" {
			continue
		}
		if id, ok := attrInt(t, "spriteId"); ok && strings.Contains(strings.ToLower(names[id]), "arenarank") {
			sprite = t
		}
	}
	if sprite == nil {
		return nil, fmt.Errorf("%w: no arena rank sprite", ErrSkipped)
	}

	out := make([]rankImage, len(ranks))
	byRank := make(map[int]int, len(ranks))
	at := lastRank
	for i, r := range ranks {
		r.CharacterID = base + i
		el := newExternalImage(r)
		insertAfter(at, el)
		at = el
		out[i] = r
		byRank[r.Rank] = r.CharacterID
	}
	patchRankSprite(sprite, byRank, anchorID)
	return out, nil
}

// PatchRankGFX decompiles gfx, adds the rank images of layout and compiles
// it back in place. Intermediate xml files are removed.
func PatchRankGFX(ctx context.Context, tc *Toolchain, gfx string, layout *TextureAtlas, log zerolog.Logger) error {
	stem := strings.TrimSuffix(gfx, ".gfx")
	xmlPath, edited := stem+".xml", stem+"-edited.xml"
	if err := tc.DecompileGFX(ctx, gfx, xmlPath); err != nil {
		return err
	}
	defer os.Remove(xmlPath)

	doc, err := readXML(xmlPath)
	if err != nil {
		return err
	}
	placed, err := PatchRankDocument(doc, rankImages(layout))
	if err != nil {
		if !IsFatal(err) {
			log.Warn().Err(err).Str("gfx", gfx).Msg("rank icons not added")
		}
		return err
	}
	log.Debug().Str("gfx", gfx).Int("images", len(placed)).Msg("rank icons defined")

	if err := writeXML(doc, edited); err != nil {
		return err
	}
	defer os.Remove(edited)
	return tc.CompileGFX(ctx, edited, gfx)
}

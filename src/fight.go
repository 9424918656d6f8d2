package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	introLineCount = 3
	outroLineCount = 2
)

// FightText is the textData block of a fight descriptor.
type FightText struct {
	ArenaDescription    string
	ACName              string
	PilotName           string
	CharacterNameTextID string
	IntroLines          []string // nil when absent
	OutroLines          []string
}

// Fight is one validated fight folder.
type Fight struct {
	Name    string
	Dir     string
	Ordinal int
	IDs     IDSet

	Arena      Overrides // arenaData, in file order
	Text       FightText
	LogicID    string // set when no custom script is shipped
	DesignFile string
	LuaFile    string
	Images     map[string]string // image kind -> source file
}

// filesWithExt lists the regular files in dir ending in ext.
func filesWithExt(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ext) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// jsonValue renders a descriptor value the way it is written into a param
// row.
func jsonValue(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.True:
		return "True"
	case gjson.False:
		return "False"
	default:
		return v.Raw
	}
}

func lines(v gjson.Result) []string {
	if !v.Exists() {
		return nil
	}
	out := []string{}
	v.ForEach(func(_, l gjson.Result) bool {
		out = append(out, l.String())
		return true
	})
	return out
}

// LoadFight reads and validates the fight folder dir. Nothing outside the
// folder is touched.
func LoadFight(dir string, ordinal int, c ConstantsProperties) (*Fight, error) {
	ids, err := DeriveIDs(c, ordinal)
	if err != nil {
		return nil, err
	}
	f := &Fight{Name: filepath.Base(dir), Dir: dir, Ordinal: ordinal, IDs: ids, Images: make(map[string]string)}

	raw, err := os.ReadFile(filepath.Join(dir, "data.json"))
	if err != nil {
		return nil, inputErrorf(dir, "cannot read data.json: %v", err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, inputErrorf(dir, "data.json is not valid json")
	}
	data := gjson.ParseBytes(raw)

	arena := data.Get("arenaData")
	if arena.Exists() && !arena.IsObject() {
		return nil, inputErrorf(dir, "arenaData must be an object")
	}
	arena.ForEach(func(k, v gjson.Result) bool {
		f.Arena = append(f.Arena, Override{Key: k.String(), Value: jsonValue(v)})
		return true
	})

	text := data.Get("textData")
	if !text.IsObject() {
		return nil, inputErrorf(dir, "textData missing")
	}
	for _, key := range []string{"arenaDescription", "acName", "pilotName"} {
		if !text.Get(key).Exists() {
			return nil, inputErrorf(dir, "textData.%v missing", key)
		}
	}
	f.Text = FightText{
		ArenaDescription:    text.Get("arenaDescription").String(),
		ACName:              text.Get("acName").String(),
		PilotName:           text.Get("pilotName").String(),
		CharacterNameTextID: text.Get("characterNameTextId").String(),
		IntroLines:          lines(text.Get("introLines")),
		OutroLines:          lines(text.Get("outroLines")),
	}
	if f.Text.IntroLines != nil && len(f.Text.IntroLines) < introLineCount {
		return nil, inputErrorf(dir, "introLines needs %d lines, got %d", introLineCount, len(f.Text.IntroLines))
	}
	if f.Text.OutroLines != nil && len(f.Text.OutroLines) < outroLineCount {
		return nil, inputErrorf(dir, "outroLines needs %d lines, got %d", outroLineCount, len(f.Text.OutroLines))
	}
	if (f.Text.IntroLines != nil || f.Text.OutroLines != nil) && f.Text.CharacterNameTextID == "" {
		return nil, inputErrorf(dir, "textData.characterNameTextId missing")
	}

	designs, err := filesWithExt(dir, ".design")
	if err != nil {
		return nil, inputErrorf(dir, "%v", err)
	}
	switch len(designs) {
	case 1:
		f.DesignFile = designs[0]
	case 0:
		return nil, inputErrorf(dir, "no .design file found")
	default:
		return nil, inputErrorf(dir, "multiple .design files found")
	}

	if id := data.Get("logicId"); id.Exists() {
		f.LogicID = id.String()
	} else {
		luas, err := filesWithExt(dir, ".lua")
		if err != nil {
			return nil, inputErrorf(dir, "%v", err)
		}
		switch len(luas) {
		case 1:
			f.LuaFile = luas[0]
		case 0:
			return nil, inputErrorf(dir, "neither a logicId nor a custom .lua file given")
		default:
			return nil, inputErrorf(dir, "multiple .lua files found")
		}
	}

	for kind := range imageTargets {
		if p := findImage(dir, kind); p != "" {
			f.Images[kind] = p
		}
	}
	if _, ok := f.Images[imgRankIcon]; ok && ids.RankTextureID < 0 {
		return nil, inputErrorf(dir, "no rank texture id left for fight %d (StartingArenaRank is %d)", ordinal+1, c.StartingArenaRank)
	}
	return f, nil
}

// LoadFights loads the folders named by order under root. Every folder is
// validated before any is used.
func LoadFights(root string, order []string, c ConstantsProperties) ([]*Fight, error) {
	if len(order) == 0 {
		return nil, inputErrorf(root, "no fights listed")
	}
	fights := make([]*Fight, 0, len(order))
	seen := make(map[string]bool)
	for i, name := range order {
		if seen[name] {
			return nil, inputErrorf(filepath.Join(root, name), "listed twice")
		}
		seen[name] = true
		f, err := LoadFight(filepath.Join(root, name), i, c)
		if err != nil {
			return nil, err
		}
		fights = append(fights, f)
	}
	return fights, nil
}

// LogicIDFor returns the npc think logic id written for the fight.
func (f *Fight) LogicIDFor() string {
	if f.LuaFile != "" {
		return strconv.Itoa(f.IDs.NpcCharaID)
	}
	return f.LogicID
}

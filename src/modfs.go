package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
)

// Game paths, relative to the game and mod folders.
var (
	relRegulation = "regulation.bin"
	relDesignBnd  = filepath.Join("param", "asmparam", "asmparam.designbnd.dcx")
	relSoloBhd    = filepath.Join("menu", "hi", "00_solo.tpfbhd")
	relSoloBdt    = filepath.Join("menu", "hi", "00_solo.tpfbdt")
	relCommonLyt  = filepath.Join("menu", "hi", "01_common.sblytbnd.dcx")
	relCommonTpf  = filepath.Join("menu", "hi", "01_common.tpf.dcx")
	relSoundBank  = filepath.Join("sd", "enus", "npc015.bnk")
)

// ModFS stages game files into the mod folder and edits the manifests of
// unpacked archives.
type ModFS struct {
	GameDir string
	ModDir  string
	tc      *Toolchain
	log     zerolog.Logger
}

func NewModFS(gameDir, modDir string, tc *Toolchain, log zerolog.Logger) *ModFS {
	return &ModFS{GameDir: gameDir, ModDir: modDir, tc: tc, log: log}
}

// Path joins rel onto the mod folder.
func (m *ModFS) Path(rel ...string) string {
	return filepath.Join(append([]string{m.ModDir}, rel...)...)
}

// Reset deletes the mod folder and recreates it empty.
func (m *ModFS) Reset() error {
	mod, err := filepath.Abs(m.ModDir)
	if err != nil {
		return err
	}
	if game, err := filepath.Abs(m.GameDir); err == nil && game == mod {
		return fmt.Errorf("%w: mod folder is the game folder", ErrInput)
	}
	if m.ModDir == "" || mod == filepath.Dir(mod) {
		return fmt.Errorf("%w: refusing to delete mod folder %q", ErrInput, m.ModDir)
	}
	if err := os.RemoveAll(mod); err != nil {
		return err
	}
	m.log.Info().Str("dir", mod).Msg("mod folder reset")
	return os.MkdirAll(mod, 0755)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// CopyFromGameIfMissing copies rel from the game folder unless the mod
// folder already has it, and reports whether it copied.
func (m *ModFS) CopyFromGameIfMissing(rel string) (bool, error) {
	dst := m.Path(rel)
	if _, err := os.Stat(dst); err == nil {
		return false, nil
	}
	src := filepath.Join(m.GameDir, rel)
	if err := copyFile(src, dst); err != nil {
		return false, fmt.Errorf("%w: game file %v: %v", ErrNotFound, rel, err)
	}
	return true, nil
}

// Stage copies an archive into the mod folder and unpacks it, once. It
// returns the unpacked folder.
func (m *ModFS) Stage(ctx context.Context, rel string, recursive bool) (string, error) {
	copied, err := m.CopyFromGameIfMissing(rel)
	if err != nil {
		return "", err
	}
	dir := ArchiveDir(m.Path(rel))
	if copied {
		if err := m.tc.UnpackArchive(ctx, m.Path(rel), recursive); err != nil {
			return "", err
		}
	}
	return dir, nil
}

// Staged reports whether the archive rel has been unpacked in the mod folder.
func (m *ModFS) Staged(rel string) bool {
	st, err := os.Stat(ArchiveDir(m.Path(rel)))
	return err == nil && st.IsDir()
}

// Repack rebuilds the archive rel from its unpacked folder.
func (m *ModFS) Repack(ctx context.Context, rel string) error {
	return m.tc.RepackArchive(ctx, ArchiveDir(m.Path(rel)))
}

func findManifest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "_witchy") && strings.HasSuffix(e.Name(), ".xml") {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("%w: no _witchy manifest in %v", ErrNotFound, dir)
}

// appendRecord adds <tag><k>v</k>...</tag> as the last child of parent with
// indentation matching its siblings.
func appendRecord(parent *etree.Element, tag string, fields [][2]string) *etree.Element {
	ws := childIndent(parent)
	el := etree.NewElement(tag)
	for _, kv := range fields {
		el.AddChild(etree.NewText(ws + "  "))
		el.CreateElement(kv[0]).SetText(kv[1])
	}
	el.AddChild(etree.NewText(ws))
	appendChild(parent, el)
	return el
}

func childText(el *etree.Element, tag string) string {
	if c := el.SelectElement(tag); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}

// AddToManifest registers files with the manifest of an unpacked archive.
// Binder entries get the next free id, texture entries the default format.
// Files already listed are skipped.
func (m *ModFS) AddToManifest(dir string, files ...string) error {
	path, err := findManifest(dir)
	if err != nil {
		return err
	}
	doc, err := readXML(path)
	if err != nil {
		return err
	}
	root := doc.Root()
	if root == nil {
		return fmt.Errorf("%w: empty manifest %v", ErrInput, path)
	}

	added := 0
	switch root.Tag {
	case "bnd4", "bxf4":
		list := root.SelectElement("files")
		if list == nil {
			list = etree.NewElement("files")
			appendChild(root, list)
		}
		next := -1
		present := make(map[string]bool)
		for _, f := range list.SelectElements("file") {
			if id, err := strconv.Atoi(childText(f, "id")); err == nil && id > next {
				next = id
			}
			present[childText(f, "path")] = true
		}
		for _, name := range files {
			if present[name] {
				m.log.Info().Str("file", name).Str("manifest", path).Msg("already listed, skipping")
				continue
			}
			next++
			appendRecord(list, "file", [][2]string{{"flags", "Flag1"}, {"id", strconv.Itoa(next)}, {"path", name}})
			present[name] = true
			added++
		}
	case "tpf":
		list := root.SelectElement("textures")
		if list == nil {
			list = etree.NewElement("textures")
			appendChild(root, list)
		}
		present := make(map[string]bool)
		for _, t := range list.SelectElements("texture") {
			present[childText(t, "name")] = true
		}
		for _, name := range files {
			if present[name] {
				m.log.Info().Str("texture", name).Str("manifest", path).Msg("already listed, skipping")
				continue
			}
			appendRecord(list, "texture", [][2]string{{"name", name}, {"format", "102"}, {"flags1", "0x00"}})
			present[name] = true
			added++
		}
	default:
		return fmt.Errorf("%w: unsupported manifest root <%v> in %v", ErrInput, root.Tag, path)
	}

	if err := writeXML(doc, path); err != nil {
		return err
	}
	m.log.Debug().Str("manifest", path).Int("added", added).Msg("manifest updated")
	return nil
}

// replaceInFile rewrites every occurrence of old in path.
func replaceInFile(path, old, new string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strings.ReplaceAll(string(b), old, new)), 0644)
}

func saveGenerated(doc *etree.Document, path string) error {
	doc.Indent(2)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return writeXML(doc, path)
}

// writeSingleTPF writes the manifest of a texture container holding only
// <name>.dds.
func writeSingleTPF(dir, name string) error {
	doc := newXMLDocument()
	tpf := doc.CreateElement("tpf")
	for _, kv := range [][2]string{
		{"filename", name + ".tpf.dcx"},
		{"compression", "DCX_KRAK_MAX"},
		{"encoding", "0x01"},
		{"flag2", "0x03"},
		{"platform", "PC"},
	} {
		tpf.CreateElement(kv[0]).SetText(kv[1])
	}
	tex := tpf.CreateElement("textures").CreateElement("texture")
	tex.CreateElement("name").SetText(name + ".dds")
	tex.CreateElement("format").SetText("102")
	tex.CreateElement("flags1").SetText("0x00")
	return saveGenerated(doc, filepath.Join(dir, "_witchy-tpf.xml"))
}

func logicName(id int) string {
	return fmt.Sprintf("%d_logic", id)
}

// writeLuagnl writes the global name list of a logic script.
func writeLuagnl(path string, id int) error {
	doc := newXMLDocument()
	gnl := doc.CreateElement("luagnl")
	gnl.CreateElement("filename").SetText(logicName(id) + ".luagnl")
	gnl.CreateElement("bigendian").SetText("false")
	gnl.CreateElement("longformat").SetText("true")
	globals := gnl.CreateElement("globals")
	for _, g := range logicGlobals(id) {
		globals.CreateElement("global").SetText(g)
	}
	return saveGenerated(doc, path)
}

// writeLuaBND writes the binder manifest of a logic script folder.
func writeLuaBND(dir string, id int) error {
	name := logicName(id)
	doc := newXMLDocument()
	bnd := doc.CreateElement("bnd4")
	for _, kv := range [][2]string{
		{"filename", name + ".luabnd.dcx"},
		{"compression", "DCX_KRAK_MAX"},
		{"version", "07D7R6"},
		{"format", "IDs, Names1, Names2, Compression"},
		{"bigendian", "False"},
		{"bitbigendian", "False"},
		{"unicode", "True"},
		{"extended", "0x04"},
		{"unk04", "False"},
		{"unk05", "False"},
		{"root", `W:\FNR\data\Target\INTERROOT_win64\script\ai\out\each\` + name},
	} {
		bnd.CreateElement(kv[0]).SetText(kv[1])
	}
	files := bnd.CreateElement("files")
	for _, f := range [][2]string{{"1000", name + ".lua"}, {"1000000", name + ".luagnl"}} {
		file := files.CreateElement("file")
		file.CreateElement("flags").SetText("Flag1")
		file.CreateElement("id").SetText(f[0])
		file.CreateElement("path").SetText(f[1])
	}
	return saveGenerated(doc, filepath.Join(dir, "_witchy-bnd4.xml"))
}

// AddDesignFile installs an AC design as <designID>.design in the design
// binder.
func (m *ModFS) AddDesignFile(ctx context.Context, src string, designID int) error {
	dir, err := m.Stage(ctx, relDesignBnd, false)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%d.design", designID)
	if err := copyFile(src, filepath.Join(dir, name)); err != nil {
		return err
	}
	return m.AddToManifest(dir, name)
}

// AddSoloTexture wraps a dds into its own MENU_<kind>_<id> texture container
// inside the solo texture binder.
func (m *ModFS) AddSoloTexture(ctx context.Context, kind string, id int, dds string) error {
	if _, err := m.CopyFromGameIfMissing(relSoloBhd); err != nil {
		return err
	}
	solo, err := m.Stage(ctx, relSoloBdt, false)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("MENU_%v_%08d", kind, id)
	dir := filepath.Join(solo, name+"-tpf-dcx")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := copyFile(dds, filepath.Join(dir, name+".dds")); err != nil {
		return err
	}
	if err := writeSingleTPF(dir, name); err != nil {
		return err
	}
	if err := m.tc.RepackArchive(ctx, dir); err != nil {
		return err
	}
	return m.AddToManifest(solo, name+".tpf.dcx")
}

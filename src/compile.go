package main

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
)

// Parameter classes written by a compile.
const (
	paramArena     = "ArenaParam"
	paramCharaInit = "CharaInitParam"
	paramNpc       = "NpcParam"
	paramAccount   = "AccountParam"
	paramNpcThink  = "NpcThinkParam"
	paramTalk      = "TalkParam"

	defaultRankTextureID = 50
	customArenaLabel     = "CUSTOM ARENA"
)

const (
	progressFightsDone = 75
	progressTextures   = 75
	progressDecals     = 80
	progressRanks      = 85
	progressSaving     = 95
	progressDone       = 100
)

var paramOrder = []string{paramArena, paramCharaInit, paramNpc, paramAccount, paramNpcThink, paramTalk}

var textOrder = []string{"MenuText", "RankerProfile", "TitleCharacters", "TalkMsg"}

var (
	decalAtlas = AtlasOptions{
		Name: "SB_DecalThumbnails", RootName: "SB_DecalThumbnails",
		CellWidth: 128, CellHeight: 128, Prefix: "Decal_tmb", IDPad: 8, Gap: 2,
	}
	rankAtlas = AtlasOptions{
		Name: "SB_CustomArenaRank", RootName: "SB_ArenaRank",
		CellWidth: 232, CellHeight: 128, Prefix: "CustomArenaRank", IDPad: 5, Gap: 2,
	}
)

// Compiler builds the mod folder from the fight folders. One Compiler runs
// one compile; it is not safe for concurrent use.
type Compiler struct {
	cfg      *Config
	tc       *Toolchain
	fs       *ModFS
	hasher   Hasher
	log      zerolog.Logger
	progress ProgressFunc

	params      map[string]*ParamTable
	texts       map[string]*TextTable
	bank        *SoundBank
	wem         *WemConverter
	decalThumbs map[int]string // account id -> prepared png
	rankIcons   map[int]string // rank -> prepared png
}

func NewCompiler(cfg *Config, tc *Toolchain, hasher Hasher, log zerolog.Logger, progress ProgressFunc) *Compiler {
	return &Compiler{
		cfg:      cfg,
		tc:       tc,
		fs:       NewModFS(cfg.Paths.GameFolder, cfg.Paths.ModFolder, tc, log),
		hasher:   hasher,
		log:      log,
		progress: progress,
	}
}

func (c *Compiler) report(percent int, status string) {
	if c.progress != nil {
		c.progress(clampPercent(percent), status)
	}
}

func (c *Compiler) imageDir(f *Fight) string {
	return filepath.Join(c.cfg.Paths.WorkFolder, "images", f.Name)
}

// Compile runs the whole pipeline. All fights are validated before the mod
// folder is touched; any error after that leaves it partially written.
func (c *Compiler) Compile(ctx context.Context) error {
	k := c.cfg.Constants
	fights, err := LoadFights(c.cfg.Paths.FightsFolder, c.cfg.Fights.Order, k)
	if err != nil {
		return err
	}
	c.log.Info().Int("fights", len(fights)).Msg("fights validated")

	if err := c.fs.Reset(); err != nil {
		return err
	}
	defer os.RemoveAll(filepath.Join(c.cfg.Paths.WorkFolder, "images"))

	if err := c.loadTables(ctx); err != nil {
		return err
	}
	c.texts["MenuText"].Upsert(customArenaLabel, MenuTextID(k.MenuCategory))

	bankPath := c.fs.Path(relSoundBank)
	if _, err := c.fs.CopyFromGameIfMissing(relSoundBank); err != nil {
		return err
	}
	if c.bank, err = OpenSoundBank(ctx, c.tc, bankPath, c.hasher, k.BaseTalkAccountID, c.log); err != nil {
		return err
	}
	c.wem = NewWemConverter(c.tc.Wwise, c.cfg.Paths.WorkFolder, c.log)
	c.decalThumbs = make(map[int]string)
	c.rankIcons = make(map[int]string)

	c.report(0, "Adding parameters for fight 1")
	for i, f := range fights {
		if err := c.addFight(ctx, f); err != nil {
			return fmt.Errorf("%v: %w", f.Name, err)
		}
		c.report(progressFightsDone*(i+1)/len(fights), fmt.Sprintf("Added fight %d of %d", i+1, len(fights)))
	}

	if err := c.addTextures(ctx); err != nil {
		return err
	}

	c.report(progressSaving, "Saving...")
	if err := c.save(ctx); err != nil {
		return err
	}
	c.report(progressDone, "Done!")
	return nil
}

// loadTables stages the regulation and message archives and loads every
// table the compile writes to.
func (c *Compiler) loadTables(ctx context.Context) error {
	k := c.cfg.Constants
	regDir, err := c.fs.Stage(ctx, relRegulation, true)
	if err != nil {
		return err
	}
	for _, a := range msgArchives {
		if _, err := c.fs.Stage(ctx, filepath.Join(msgRelDir, a), true); err != nil {
			return err
		}
	}

	c.params = make(map[string]*ParamTable)
	load := func(name, key, field string) (*ParamTable, error) {
		p, err := LoadParamTable(name, paramPath(regDir, name), key, field, c.log)
		if err != nil {
			return nil, err
		}
		c.params[name] = p
		return p, nil
	}
	base := strconv.Itoa(k.BaselineAC)
	if _, err := load(paramArena, base, "charaInitParamId"); err != nil {
		return err
	}
	if _, err := load(paramCharaInit, base, "id"); err != nil {
		return err
	}
	npc, err := load(paramNpc, base, "id")
	if err != nil {
		return err
	}
	if _, err := load(paramNpcThink, base, "id"); err != nil {
		return err
	}
	baseAccount := npc.Baseline("accountParamId")
	if _, err := load(paramAccount, baseAccount, "id"); err != nil {
		return err
	}
	acc, err := strconv.Atoi(baseAccount)
	if err != nil {
		return fmt.Errorf("%w: %v baseline accountParamId %q", ErrNotFound, paramNpc, baseAccount)
	}
	if _, err := load(paramTalk, strconv.Itoa(TalkIntroID(acc, 0)), "id"); err != nil {
		return err
	}

	c.texts = make(map[string]*TextTable)
	for _, name := range textOrder {
		path, err := fmgPath(c.cfg.Paths.ModFolder, name)
		if err != nil {
			return err
		}
		t, err := LoadTextTable(name, path)
		if err != nil {
			return err
		}
		c.texts[name] = t
	}
	return nil
}

// fightRows builds the param rows of one fight, keyed by param class.
func (c *Compiler) fightRows(f *Fight, hasRankIcon bool) map[string][]Overrides {
	k := c.cfg.Constants
	ids := f.IDs
	n := f.Ordinal + 1
	prefix := k.ParamNamePrefix

	rank := defaultRankTextureID
	if hasRankIcon {
		rank = ids.RankTextureID
	}
	var arena Overrides
	arena.Set("id", ids.ArenaID)
	arena.Set("rankTextureId", rank)
	arena.Set("paramdexName", fmt.Sprintf("%v Combatant #%d", prefix, n))
	arena.Set("accountParamId", ids.AccountID)
	arena.Set("charaInitParamId", ids.NpcCharaID)
	arena.Set("npcParamId", ids.NpcCharaID)
	arena.Set("npcThinkParamId", ids.NpcCharaID)
	arena.Set("menuCategory", k.MenuCategory)
	for _, kv := range f.Arena {
		arena.Set(kv.Key, kv.Value)
	}

	rows := map[string][]Overrides{
		paramArena: {arena},
		paramAccount: {{
			{"paramdexName", fmt.Sprintf("%v Account #%d", prefix, n)},
			{"id", strconv.Itoa(ids.AccountID)},
			{"fmgId", strconv.Itoa(ids.AccountID)},
			{"menuDecalId", strconv.Itoa(ids.AccountID)},
		}},
		paramCharaInit: {{
			{"paramdexName", fmt.Sprintf("%v CharaInit #%d", prefix, n)},
			{"id", strconv.Itoa(ids.NpcCharaID)},
			{"acDesignId", strconv.Itoa(ids.NpcCharaID)},
		}},
		paramNpc: {{
			{"paramdexName", fmt.Sprintf("%v NpcParam #%d", prefix, n)},
			{"id", strconv.Itoa(ids.NpcCharaID)},
			{"accountParamId", strconv.Itoa(ids.AccountID)},
		}},
		paramNpcThink: {{
			{"paramdexName", fmt.Sprintf("%v NpcThink #%d", prefix, n)},
			{"id", strconv.Itoa(ids.NpcCharaID)},
			{"logicId", f.LogicIDFor()},
		}},
	}
	talk := func(id int, label string) Overrides {
		s := strconv.Itoa(id)
		return Overrides{
			{"id", s},
			{"paramdexName", fmt.Sprintf("%v Fighter #%d %v", prefix, n, label)},
			{"msgId", s},
			{"voiceId", s},
			{"characterNameTextId", f.Text.CharacterNameTextID},
		}
	}
	if f.Text.IntroLines != nil {
		for i := 0; i < introLineCount; i++ {
			rows[paramTalk] = append(rows[paramTalk], talk(ids.TalkIntroID(i), fmt.Sprintf("Intro #%d", i)))
		}
	}
	if f.Text.OutroLines != nil {
		for i := 0; i < outroLineCount; i++ {
			rows[paramTalk] = append(rows[paramTalk], talk(ids.TalkOutroID(i), fmt.Sprintf("Outro #%d", i)))
		}
	}
	return rows
}

func (c *Compiler) addFight(ctx context.Context, f *Fight) error {
	ids := f.IDs
	log := c.log.With().Str("fight", f.Name).Int("npc", ids.NpcCharaID).Logger()

	hasRank := false
	if src, ok := f.Images[imgDecalThumbnail]; ok {
		p, err := PrepareImage(src, c.imageDir(f), imgDecalThumbnail, imageTargets[imgDecalThumbnail])
		if err != nil {
			return err
		}
		c.decalThumbs[ids.AccountID] = p
	}
	if src, ok := f.Images[imgRankIcon]; ok {
		p, err := PrepareImage(src, c.imageDir(f), imgRankIcon, imageTargets[imgRankIcon])
		if err != nil {
			return err
		}
		c.rankIcons[ids.RankTextureID] = p
		hasRank = true
	}

	rows := c.fightRows(f, hasRank)
	for _, name := range paramOrder {
		for _, row := range rows[name] {
			if err := c.params[name].Upsert(row); err != nil {
				return err
			}
		}
	}

	arenaID, _ := rows[paramArena][0].Get("id")
	if id, err := strconv.Atoi(arenaID); err == nil {
		c.texts["RankerProfile"].Upsert(f.Text.ArenaDescription, id)
	}
	c.texts["TitleCharacters"].Upsert(f.Text.ACName, ids.ACNameIDs()...)
	c.texts["TitleCharacters"].Upsert(f.Text.PilotName, ids.PilotNameIDs()...)
	talk := c.texts["TalkMsg"]
	for i, l := range f.Text.IntroLines {
		if i < introLineCount {
			talk.Upsert(l, ids.TalkIntroID(i))
		}
	}
	for i, l := range f.Text.OutroLines {
		if i < outroLineCount {
			talk.Upsert(l, ids.TalkOutroID(i))
		}
	}

	if err := c.fs.AddDesignFile(ctx, f.DesignFile, ids.NpcCharaID); err != nil {
		return err
	}
	if err := c.addSoloTextures(ctx, f); err != nil {
		return err
	}
	if f.LuaFile != "" {
		if err := InstallLogicScript(ctx, c.fs, f.LuaFile, ids.NpcCharaID, log); err != nil {
			return err
		}
	}
	if err := AddTalkAudio(ctx, f, c.bank, c.wem, c.hasher, log); err != nil {
		return err
	}
	log.Info().Int("arena", ids.ArenaID).Int("account", ids.AccountID).Msg("fight added")
	return nil
}

// addSoloTextures installs the decal (per account) and archetype (per npc)
// images.
func (c *Compiler) addSoloTextures(ctx context.Context, f *Fight) error {
	for _, it := range []struct {
		kind, label string
		id          int
	}{
		{imgDecal, "Decal", f.IDs.AccountID},
		{imgArchetype, "Archetype", f.IDs.NpcCharaID},
	} {
		src, ok := f.Images[it.kind]
		if !ok {
			continue
		}
		dds, err := PrepareTexture(ctx, c.tc, src, c.imageDir(f), it.kind, imageTargets[it.kind])
		if err != nil {
			return err
		}
		err = c.fs.AddSoloTexture(ctx, it.label, it.id, dds)
		os.Remove(dds)
		if err != nil {
			return err
		}
	}
	return nil
}

// addTextures merges decal thumbnails into the existing thumbnail sheet and
// builds the custom rank icon sheet, which the UI containers then show.
func (c *Compiler) addTextures(ctx context.Context) error {
	c.report(progressTextures, "Unpacking textures...")
	lytDir, err := c.fs.Stage(ctx, relCommonLyt, false)
	if err != nil {
		return err
	}
	tpfDir, err := c.fs.Stage(ctx, relCommonTpf, false)
	if err != nil {
		return err
	}
	if err := replaceInFile(filepath.Join(tpfDir, "_witchy-tpf.xml"), "DCX_KRAK_MAX", "DCX_DFLT_11000_44_9_15"); err != nil {
		return err
	}

	if len(c.decalThumbs) > 0 {
		c.report(progressDecals, "Adding decal thumbnails...")
		sheetPNG, err := c.tc.ConvertToPNG(ctx, filepath.Join(tpfDir, decalAtlas.Name+".dds"), c.cfg.Paths.WorkFolder)
		if err != nil {
			return err
		}
		existing, err := decodeImage(sheetPNG)
		os.Remove(sheetPNG)
		if err != nil {
			return err
		}
		layoutPath := filepath.Join(lytDir, decalAtlas.Name+".layout")
		layout, err := LoadTextureAtlas(layoutPath)
		if err != nil {
			return err
		}
		if _, err := c.writeAtlas(ctx, tpfDir, layoutPath, c.decalThumbs, decalAtlas, existing, layout); err != nil {
			return err
		}
	}

	if len(c.rankIcons) > 0 {
		c.report(progressRanks, "Adding custom rank icons...")
		layoutPath := filepath.Join(lytDir, rankAtlas.Name+".layout")
		layout, err := c.writeAtlas(ctx, tpfDir, layoutPath, c.rankIcons, rankAtlas, nil, nil)
		if err != nil {
			return err
		}
		if err := c.fs.AddToManifest(lytDir, rankAtlas.Name+".layout"); err != nil {
			return err
		}
		if err := c.fs.AddToManifest(tpfDir, rankAtlas.Name+".dds"); err != nil {
			return err
		}
		for _, name := range rankGFXFiles {
			rel := filepath.Join("menu", name)
			if _, err := c.fs.CopyFromGameIfMissing(rel); err != nil {
				return err
			}
			if err := PatchRankGFX(ctx, c.tc, c.fs.Path(rel), layout, c.log); IsFatal(err) {
				return err
			}
		}
	}
	return nil
}

// writeAtlas composes a sheet, stores it as dds in tpfDir and writes its
// layout.
func (c *Compiler) writeAtlas(ctx context.Context, tpfDir, layoutPath string, images map[int]string, opt AtlasOptions, existing image.Image, layout *TextureAtlas) (*TextureAtlas, error) {
	sheet, out, err := Compose(images, opt, existing, layout)
	if err != nil {
		return nil, err
	}
	png := filepath.Join(tpfDir, opt.Name+".png")
	if err := writePNG(png, sheet); err != nil {
		return nil, err
	}
	_, err = c.tc.ConvertToDDS(ctx, png, tpfDir)
	os.Remove(png)
	if err != nil {
		return nil, err
	}
	if err := out.Save(layoutPath); err != nil {
		return nil, err
	}
	c.log.Debug().Str("sheet", opt.Name).Int("width", out.Width).Int("height", out.Height).
		Int("cells", len(out.SubTextures)).Msg("texture sheet written")
	return out, nil
}

// save writes every table back and rebuilds the touched archives.
func (c *Compiler) save(ctx context.Context) error {
	for _, name := range paramOrder {
		path, err := c.params[name].Save()
		if err != nil {
			return err
		}
		if err := c.tc.RepackArchive(ctx, path); err != nil {
			return err
		}
	}
	if err := c.fs.Repack(ctx, relRegulation); err != nil {
		return err
	}
	for _, name := range textOrder {
		path, err := c.texts[name].Save()
		if err != nil {
			return err
		}
		if err := c.tc.RepackArchive(ctx, path); err != nil {
			return err
		}
	}
	if err := c.bank.Persist(ctx, c.tc); err != nil {
		return err
	}
	for _, rel := range []string{
		filepath.Join(msgRelDir, "item.msgbnd.dcx"),
		filepath.Join(msgRelDir, "menu.msgbnd.dcx"),
		relDesignBnd,
		relCommonTpf,
		relCommonLyt,
		relSoloBdt,
	} {
		// The solo textures are only unpacked for fights with a decal or
		// archetype image.
		if !c.fs.Staged(rel) {
			continue
		}
		if err := c.fs.Repack(ctx, rel); err != nil {
			return err
		}
	}
	return nil
}

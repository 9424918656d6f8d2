package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

const hircObjectsPath = "sections.1.body.HIRC.objects"

// bankObject is one HIRC object kept as raw json. Pointers stay valid while
// the object list grows, so templates and the mixer are held by pointer.
type bankObject struct {
	raw []byte
}

func (o *bankObject) get(path string) gjson.Result {
	return gjson.GetBytes(o.raw, path)
}

func (o *bankObject) set(path string, value interface{}) error {
	raw, err := sjson.SetBytes(o.raw, path, value)
	if err != nil {
		return fmt.Errorf("failed to set %v: %w", path, err)
	}
	o.raw = raw
	return nil
}

func (o *bankObject) clone() *bankObject {
	return &bankObject{raw: append([]byte(nil), o.raw...)}
}

// SoundBank edits the unpacked json form of an audio bank. Every voiced
// talk line gets a play and a stop event, each with one action pointing at a
// sound object that lives under the same actor-mixer as the template.
type SoundBank struct {
	Path     string // the .bnk
	Dir      string // its unpacked folder
	jsonPath string

	data    []byte
	objects []*bankObject
	hasher  Hasher
	log     zerolog.Logger

	// Template copies, and the list objects they were copied from; clones
	// are inserted in front of the latter.
	basePlayEvent, basePlayAction *bankObject
	baseStopEvent, baseStopAction *bankObject
	baseSound                     *bankObject
	playEventAt, playActionAt     *bankObject
	stopEventAt, stopActionAt     *bankObject
	soundAt                       *bankObject
	mixer                         *bankObject
}

// OpenSoundBank unpacks the bank with bnk2json and loads its object graph.
func OpenSoundBank(ctx context.Context, tc *Toolchain, path string, hasher Hasher, baseTalkAccountID int, log zerolog.Logger) (*SoundBank, error) {
	if _, err := tc.Bnk2JSON.Run(ctx, path); err != nil {
		return nil, err
	}
	dir := strings.TrimSuffix(path, filepath.Ext(path))
	jsonPath := filepath.Join(dir, "soundbank.json")
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %v: %w", jsonPath, err)
	}
	b, err := NewSoundBank(data, hasher, baseTalkAccountID, log)
	if err != nil {
		return nil, err
	}
	b.Path, b.Dir, b.jsonPath = path, dir, jsonPath
	return b, nil
}

// NewSoundBank parses soundbank json and resolves the templates cloned for
// new talk lines. Missing templates mean the game data does not match.
func NewSoundBank(data []byte, hasher Hasher, baseTalkAccountID int, log zerolog.Logger) (*SoundBank, error) {
	objs := gjson.GetBytes(data, hircObjectsPath)
	if !objs.IsArray() {
		return nil, fmt.Errorf("%w: sound bank has no %v", ErrNotFound, hircObjectsPath)
	}
	b := &SoundBank{data: data, hasher: hasher, log: log}
	objs.ForEach(func(_, v gjson.Result) bool {
		b.objects = append(b.objects, &bankObject{raw: []byte(v.Raw)})
		return true
	})

	baseTalk := TalkIntroID(baseTalkAccountID, 0)
	var err error
	if b.playEventAt, err = b.mustResolve(fmt.Sprintf("Play_v%d", baseTalk)); err != nil {
		return nil, err
	}
	if b.playActionAt, err = b.mustResolveHash(b.playEventAt.get("body.Event.actions.0").Uint()); err != nil {
		return nil, err
	}
	if b.stopEventAt, err = b.mustResolve(fmt.Sprintf("Stop_v%d", baseTalk)); err != nil {
		return nil, err
	}
	if b.stopActionAt, err = b.mustResolveHash(b.stopEventAt.get("body.Event.actions.0").Uint()); err != nil {
		return nil, err
	}
	if b.soundAt, err = b.mustResolveHash(b.stopActionAt.get("body.Action.external_id").Uint()); err != nil {
		return nil, err
	}
	if b.mixer, err = b.mustResolveHash(b.soundAt.get("body.Sound.node_base_params.direct_parent_id").Uint()); err != nil {
		return nil, err
	}
	b.basePlayEvent = b.playEventAt.clone()
	b.basePlayAction = b.playActionAt.clone()
	b.baseStopEvent = b.stopEventAt.clone()
	b.baseStopAction = b.stopActionAt.clone()
	b.baseSound = b.soundAt.clone()
	return b, nil
}

// Resolve finds an object by its readable name, matching either the stored
// name or the name's hash.
func (b *SoundBank) Resolve(name string) (*bankObject, error) {
	h, err := b.hasher.Hash(name)
	if err != nil {
		return nil, err
	}
	for _, o := range b.objects {
		id := o.get("id")
		if id.Get("String").Str == name {
			return o, nil
		}
		if hv := id.Get("Hash"); hv.Exists() && uint32(hv.Uint()) == h {
			return o, nil
		}
	}
	return nil, nil
}

// ResolveHash finds an object by numeric id.
func (b *SoundBank) ResolveHash(h uint32) *bankObject {
	for _, o := range b.objects {
		if hv := o.get("id.Hash"); hv.Exists() && uint32(hv.Uint()) == h {
			return o
		}
	}
	return nil
}

func (b *SoundBank) mustResolve(name string) (*bankObject, error) {
	o, err := b.Resolve(name)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("%w: sound bank object %v", ErrNotFound, name)
	}
	return o, nil
}

func (b *SoundBank) mustResolveHash(h uint64) (*bankObject, error) {
	o := b.ResolveHash(uint32(h))
	if o == nil {
		return nil, fmt.Errorf("%w: sound bank object %d", ErrNotFound, h)
	}
	return o, nil
}

func (b *SoundBank) insertBefore(at, o *bankObject) {
	for i, v := range b.objects {
		if v == at {
			b.objects = append(b.objects[:i], append([]*bankObject{o}, b.objects[i:]...)...)
			return
		}
	}
	b.objects = append(b.objects, o)
}

// Len returns the number of HIRC objects.
func (b *SoundBank) Len() int {
	return len(b.objects)
}

// MixerChildren returns the child hashes of the shared actor-mixer.
func (b *SoundBank) MixerChildren() []uint32 {
	var out []uint32
	b.mixer.get("body.ActorMixer.children.items").ForEach(func(_, v gjson.Result) bool {
		out = append(out, uint32(v.Uint()))
		return true
	})
	return out
}

// mediaID parses the numeric source id from a "<id>.wem" file name.
func mediaID(filename string) (uint32, error) {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	v, err := strconv.ParseUint(base, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: media file %q is not named by a numeric id", ErrInput, filename)
	}
	return uint32(v), nil
}

// UpsertSound creates or reuses Sound_v<talkID>, points it at the media and
// registers it with the actor-mixer once.
func (b *SoundBank) UpsertSound(talkID int, mediaFilename string) (uint32, error) {
	source, err := mediaID(mediaFilename)
	if err != nil {
		return 0, err
	}
	name := fmt.Sprintf("Sound_v%d", talkID)
	h, err := b.hasher.Hash(name)
	if err != nil {
		return 0, err
	}
	snd, err := b.Resolve(name)
	if err != nil {
		return 0, err
	}
	if snd == nil {
		snd = b.baseSound.clone()
		if err := snd.set("id.Hash", h); err != nil {
			return 0, err
		}
		b.insertBefore(b.soundAt, snd)
	}
	if err := snd.set("body.Sound.bank_source_data.source_type", "Embedded"); err != nil {
		return 0, err
	}
	if err := snd.set("body.Sound.bank_source_data.media_information.source_id", source); err != nil {
		return 0, err
	}

	hash := uint32(snd.get("id.Hash").Uint())
	for _, c := range b.MixerChildren() {
		if c == hash {
			return hash, nil
		}
	}
	if err := b.mixer.set("body.ActorMixer.children.items.-1", hash); err != nil {
		return 0, err
	}
	return hash, nil
}

func playPrefix(isPlay bool) string {
	if isPlay {
		return "Play_"
	}
	return "Stop_"
}

// UpsertAction creates or reuses {Play|Stop}_Action_v<talkID> and points it
// at the talk line's sound.
func (b *SoundBank) UpsertAction(talkID int, isPlay bool, mediaFilename string) (uint32, error) {
	base, at := b.baseStopAction, b.stopActionAt
	if isPlay {
		base, at = b.basePlayAction, b.playActionAt
	}
	name := fmt.Sprintf("%vAction_v%d", playPrefix(isPlay), talkID)
	act, err := b.Resolve(name)
	if err != nil {
		return 0, err
	}
	if act == nil {
		h, err := b.hasher.Hash(name)
		if err != nil {
			return 0, err
		}
		act = base.clone()
		if err := act.set("id.Hash", h); err != nil {
			return 0, err
		}
		b.insertBefore(at, act)
	}
	snd, err := b.UpsertSound(talkID, mediaFilename)
	if err != nil {
		return 0, err
	}
	if err := act.set("body.Action.external_id", snd); err != nil {
		return 0, err
	}
	return uint32(act.get("id.Hash").Uint()), nil
}

// UpsertEvent creates or reuses {Play|Stop}_v<talkID> with a single action.
func (b *SoundBank) UpsertEvent(talkID int, isPlay bool, mediaFilename string) (string, error) {
	base, at := b.baseStopEvent, b.stopEventAt
	if isPlay {
		base, at = b.basePlayEvent, b.playEventAt
	}
	name := fmt.Sprintf("%vv%d", playPrefix(isPlay), talkID)
	ev, err := b.Resolve(name)
	if err != nil {
		return "", err
	}
	if ev == nil {
		ev = base.clone()
		if ev.get("id.Hash").Exists() {
			raw, err := sjson.DeleteBytes(ev.raw, "id.Hash")
			if err != nil {
				return "", err
			}
			ev.raw = raw
		}
		if err := ev.set("id.String", name); err != nil {
			return "", err
		}
		b.insertBefore(at, ev)
	}
	act, err := b.UpsertAction(talkID, isPlay, mediaFilename)
	if err != nil {
		return "", err
	}
	if err := ev.set("body.Event.actions", []uint32{act}); err != nil {
		return "", err
	}
	return name, nil
}

// Serialize writes the object list back into the document.
func (b *SoundBank) Serialize() ([]byte, error) {
	var arr bytes.Buffer
	arr.WriteByte('[')
	for i, o := range b.objects {
		if i > 0 {
			arr.WriteByte(',')
		}
		arr.Write(o.raw)
	}
	arr.WriteByte(']')
	data, err := sjson.SetRawBytes(b.data, hircObjectsPath, arr.Bytes())
	if err != nil {
		return nil, err
	}
	return pretty.PrettyOptions(data, &pretty.Options{Width: 80, Indent: "  "}), nil
}

// Persist saves the json, rebuilds the bank and swaps it in, keeping the
// previous binary as <name>.backup.bnk.
func (b *SoundBank) Persist(ctx context.Context, tc *Toolchain) error {
	b.log.Info().Int("mixerChildren", len(b.MixerChildren())).Int("objects", b.Len()).Msg("saving sound bank")
	data, err := b.Serialize()
	if err != nil {
		return err
	}
	if err := os.WriteFile(b.jsonPath, data, 0644); err != nil {
		return err
	}
	if _, err := tc.Bnk2JSON.Run(ctx, b.Dir); err != nil {
		return err
	}
	ext := filepath.Ext(b.Path)
	stem := strings.TrimSuffix(b.Path, ext)
	if err := os.Rename(b.Path, stem+".backup"+ext); err != nil {
		return err
	}
	return os.Rename(stem+".created"+ext, b.Path)
}

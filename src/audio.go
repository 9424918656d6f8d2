package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/rs/zerolog"
)

const maxTalkAudioIndex = 3

var (
	audioExtensions = []string{".wav", ".mp3", ".ogg", ".flac"}
	talkAudioRe     = regexp.MustCompile(`^(\d+)\.\w+$`)
)

// talkAudio is a voice line file and the talk id it is played for.
type talkAudio struct {
	Path   string
	TalkID int
}

func isAudioFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range audioExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// findTalkAudio lists the intro/ and outro/ voice lines of a fight. Files
// must be named <n>.<ext> with n at most 3; anything else is skipped.
func findTalkAudio(dir string, ids IDSet, log zerolog.Logger) ([]talkAudio, error) {
	var out []talkAudio
	for _, sub := range []string{"intro", "outro"} {
		entries, err := os.ReadDir(filepath.Join(dir, sub))
		if os.IsNotExist(err) {
			continue
		} else if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !isAudioFile(e.Name()) {
				continue
			}
			m := talkAudioRe.FindStringSubmatch(e.Name())
			n := -1
			if m != nil {
				n, _ = strconv.Atoi(m[1])
			}
			if n < 0 || n > maxTalkAudioIndex {
				log.Warn().Str("file", filepath.Join(dir, sub, e.Name())).
					Msg("skipping audio file: not named <n>.<ext> with n <= 3")
				continue
			}
			id := ids.TalkOutroID(n)
			if sub == "intro" {
				id = ids.TalkIntroID(n)
			}
			out = append(out, talkAudio{Path: filepath.Join(dir, sub, e.Name()), TalkID: id})
		}
	}
	return out, nil
}

func decodeAudio(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(f.Name())) {
	case ".ogg":
		return vorbis.Decode(f)
	case ".mp3":
		return mp3.Decode(f)
	case ".flac":
		return flac.Decode(f)
	case ".wav":
		return wav.Decode(f)
	}
	return nil, beep.Format{}, fmt.Errorf("%w: unsupported audio file %v", ErrInput, f.Name())
}

// normalizeWAV decodes src and writes it as 16-bit stereo PCM.
func normalizeWAV(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	streamer, format, err := decodeAudio(f)
	if err != nil {
		return fmt.Errorf("%w: failed to decode %v: %v", ErrInput, src, err)
	}
	defer streamer.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	format.NumChannels = 2
	format.Precision = 2
	if err := wav.Encode(out, streamer, format); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// WemConverter turns wav files into streaming audio assets with
// WwiseConsole, through a conversion project kept in the work folder.
type WemConverter struct {
	tool    Tool
	workDir string
	log     zerolog.Logger
}

func NewWemConverter(tool Tool, workDir string, log zerolog.Logger) *WemConverter {
	return &WemConverter{tool: tool, workDir: filepath.Join(workDir, "audio"), log: log}
}

func (w *WemConverter) project() string {
	return filepath.Join(w.workDir, "conversion-project", "conversion-project.wproj")
}

func (w *WemConverter) inputDir() string {
	return filepath.Join(w.workDir, "input")
}

func (w *WemConverter) ensureProject(ctx context.Context) error {
	if _, err := os.Stat(w.project()); err == nil {
		return nil
	}
	_, err := w.tool.Run(ctx, "create-new-project", w.project(), "--platform", "Windows")
	return err
}

func writeSourceList(path, root, wav string) error {
	doc := newXMLDocument()
	list := doc.CreateElement("ExternalSourcesList")
	list.CreateAttr("SchemaVersion", "1")
	list.CreateAttr("Root", root)
	src := list.CreateElement("Source")
	src.CreateAttr("Path", wav)
	src.CreateAttr("Conversion", "Vorbis Quality High")
	return saveGenerated(doc, path)
}

// Convert normalizes src and converts it, returning the path of
// <name>.wem in the converter's input folder.
func (w *WemConverter) Convert(ctx context.Context, src, name string) (string, error) {
	if err := w.ensureProject(ctx); err != nil {
		return "", err
	}
	in := w.inputDir()
	wavPath := filepath.Join(in, name+".wav")
	if err := normalizeWAV(src, wavPath); err != nil {
		return "", err
	}
	defer os.Remove(wavPath)
	list := filepath.Join(in, "to_convert.wsources")
	if err := writeSourceList(list, in, filepath.Base(wavPath)); err != nil {
		return "", err
	}
	defer os.Remove(list)

	if _, err := w.tool.Run(ctx, "convert-external-source", w.project(), "--no-wwise-dat",
		"--source-file", list, "--output", "Windows", in); err != nil {
		return "", err
	}
	wem := filepath.Join(in, name+".wem")
	if _, err := os.Stat(wem); err != nil {
		return "", fmt.Errorf("%w: WwiseConsole produced no %v", ErrTool, filepath.Base(wem))
	}
	return wem, nil
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		in.Close()
		return err
	}
	_, err = io.Copy(out, in)
	in.Close()
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Remove(src)
}

// AddTalkAudio converts the fight's voice lines, installs them in the bank
// folder as <hash(Source_v<talk>)>.wem and registers their events.
func AddTalkAudio(ctx context.Context, f *Fight, bank *SoundBank, conv *WemConverter, hasher Hasher, log zerolog.Logger) error {
	lines, err := findTalkAudio(f.Dir, f.IDs, log)
	if err != nil {
		return err
	}
	for _, l := range lines {
		wem, err := conv.Convert(ctx, l.Path, strconv.Itoa(l.TalkID))
		if err != nil {
			return err
		}
		h, err := hasher.Hash(fmt.Sprintf("Source_v%d", l.TalkID))
		if err != nil {
			return err
		}
		name := fmt.Sprintf("%d.wem", h)
		dst := filepath.Join(bank.Dir, name)
		if _, err := os.Stat(dst); err == nil {
			log.Warn().Str("file", dst).Msg("overwriting existing media")
		}
		if err := os.MkdirAll(bank.Dir, 0755); err != nil {
			return err
		}
		if err := moveFile(wem, dst); err != nil {
			return err
		}
		for _, play := range []bool{true, false} {
			if _, err := bank.UpsertEvent(l.TalkID, play, name); err != nil {
				return err
			}
		}
		log.Debug().Int("talk", l.TalkID).Str("media", name).Msg("voice line added")
	}
	return nil
}

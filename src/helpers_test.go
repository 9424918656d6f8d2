package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeTool records invocations and optionally runs a handler instead of a
// real executable.
type fakeTool struct {
	mu    sync.Mutex
	calls [][]string
	run   func(args []string) ([]byte, error)
}

func (f *fakeTool) Run(ctx context.Context, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), args...))
	f.mu.Unlock()
	if f.run != nil {
		return f.run(args)
	}
	return nil, nil
}

func (f *fakeTool) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// lastArgs returns the final argument of every call.
func (f *fakeTool) lastArgs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if len(c) > 0 {
			out = append(out, c[len(c)-1])
		}
	}
	return out
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func writeSolidPNG(t *testing.T, path string, w, h int, c color.NRGBA) string {
	t.Helper()
	require.NoError(t, writePNG(path, solidImage(w, h, c)))
	return path
}

// paramXML renders a param document holding rows, one per line.
func paramXML(rows ...string) string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n<param>\n  <rows>\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "    %v\n", r)
	}
	b.WriteString("  </rows>\n</param>\n")
	return b.String()
}

func fmgXML(entries ...string) string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n<fmg>\n  <entries>\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "    %v\n", e)
	}
	b.WriteString("  </entries>\n</fmg>\n")
	return b.String()
}

// soundbankJSON is a bank holding the talk line templates of account 1120:
// play and stop events, their actions, the sound they share and its mixer.
const soundbankJSON = `{
  "sections": [
    {"magic": "BKHD", "body": {"BKHD": {"version": 145}}},
    {"magic": "HIRC", "body": {"HIRC": {"objects": [
      {"id": {"Hash": 9}, "body": {"State": {}}},
      {"id": {"String": "Play_v601120100"}, "body": {"Event": {"actions": [100]}}},
      {"id": {"Hash": 100}, "body": {"Action": {"action_type": "Play", "external_id": 300}}},
      {"id": {"String": "Stop_v601120100"}, "body": {"Event": {"actions": [200]}}},
      {"id": {"Hash": 200}, "body": {"Action": {"action_type": "Stop", "external_id": 300}}},
      {"id": {"Hash": 300}, "body": {"Sound": {
        "bank_source_data": {"source_type": "Streaming", "media_information": {"source_id": 1}},
        "node_base_params": {"direct_parent_id": 400}}}},
      {"id": {"Hash": 400}, "body": {"ActorMixer": {"children": {"items": [300]}}}}
    ]}}}
  ]
}`

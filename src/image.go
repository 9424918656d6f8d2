package main

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lukegb/dds"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

// Source extensions tried in order when looking up a fight image.
var imageExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tiff", ".dds"}

// Optional fight images and the size they are scaled to.
const (
	imgDecalThumbnail = "decal_thumbnail"
	imgRankIcon       = "rank_icon"
	imgDecal          = "decal"
	imgArchetype      = "archetype"
)

type imageTarget struct {
	Width, Height int
	PadX, PadY    int
}

var imageTargets = map[string]imageTarget{
	imgDecalThumbnail: {Width: 128, Height: 128},
	imgRankIcon:       {Width: 232, Height: 128},
	imgDecal:          {Width: 1024, Height: 1024},
	imgArchetype:      {Width: 2048, Height: 893, PadY: 131},
}

// findImage returns the first <name>.<ext> in dir, or "".
func findImage(dir, name string) string {
	for _, ext := range imageExtensions {
		p := filepath.Join(dir, name+ext)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}

func roundUp4(n int) int {
	return (n + 3) / 4 * 4
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode %v: %v", ErrInput, path, err)
	}
	return img, nil
}

func writePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// PrepareImage scales src to the target size and pads it transparent on the
// right and bottom. An axis without explicit padding is rounded up to a
// multiple of 4 first. The result is written to <outDir>/<name>-resized.png.
func PrepareImage(src, outDir, name string, t imageTarget) (string, error) {
	w, h := t.Width, t.Height
	if t.PadX == 0 {
		w = roundUp4(w)
	}
	if t.PadY == 0 {
		h = roundUp4(h)
	}
	img, err := decodeImage(src)
	if err != nil {
		return "", err
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w+t.PadX, h+t.PadY))
	draw.CatmullRom.Scale(dst, image.Rect(0, 0, w, h), img, img.Bounds(), draw.Src, nil)

	out := filepath.Join(outDir, name+"-resized.png")
	if err := writePNG(out, dst); err != nil {
		return "", err
	}
	return out, nil
}

// PrepareTexture prepares src and compresses it to <outDir>/<name>-final.dds.
func PrepareTexture(ctx context.Context, tc *Toolchain, src, outDir, name string, t imageTarget) (string, error) {
	resized, err := PrepareImage(src, outDir, name, t)
	if err != nil {
		return "", err
	}
	defer os.Remove(resized)
	dds, err := tc.ConvertToDDS(ctx, resized, outDir)
	if err != nil {
		return "", err
	}
	final := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(dds), "-resized.dds")+"-final.dds")
	if err := os.Rename(dds, final); err != nil {
		return "", err
	}
	return final, nil
}

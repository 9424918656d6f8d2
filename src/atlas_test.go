package main

import (
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red   = color.NRGBA{R: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

func TestGridSize(t *testing.T) {
	for n, want := range map[int][2]int{
		0:  {0, 0},
		1:  {1, 1},
		2:  {2, 1},
		3:  {2, 2},
		4:  {2, 2},
		5:  {3, 2},
		10: {4, 3},
	} {
		cols, rows := gridSize(n)
		assert.Equal(t, want, [2]int{cols, rows}, "n=%d", n)
	}
}

func TestRoundUp4(t *testing.T) {
	assert.Equal(t, 0, roundUp4(0))
	assert.Equal(t, 128, roundUp4(128))
	assert.Equal(t, 260, roundUp4(258))
	assert.Equal(t, 896, roundUp4(893))
}

func TestComposeNewSheet(t *testing.T) {
	dir := t.TempDir()
	images := map[int]string{}
	for i, c := range []color.NRGBA{red, green, blue, white} {
		images[9000+i*10] = writeSolidPNG(t, filepath.Join(dir, string(rune('a'+i))+".png"), 128, 128, c)
	}
	sheet, layout, err := Compose(images, decalAtlas, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 260, 260), sheet.Bounds())
	assert.Equal(t, 260, layout.Width)
	assert.Equal(t, 260, layout.Height)
	assert.Equal(t, `W:\FNR\data\Menu\ScaleForm\Tif\01_Common\SB_DecalThumbnails\Hi\exp\SB_DecalThumbnails.png`, layout.ImagePath)
	require.Len(t, layout.SubTextures, 4)
	assert.Equal(t, SubTexture{Name: "Decal_tmb_00009000.png", X: 0, Y: 0, Width: 128, Height: 128}, layout.SubTextures[0])
	assert.Equal(t, SubTexture{Name: "Decal_tmb_00009010.png", X: 130, Y: 0, Width: 128, Height: 128}, layout.SubTextures[1])
	assert.Equal(t, SubTexture{Name: "Decal_tmb_00009020.png", X: 0, Y: 130, Width: 128, Height: 128}, layout.SubTextures[2])
	assert.Equal(t, SubTexture{Name: "Decal_tmb_00009030.png", X: 130, Y: 130, Width: 128, Height: 128}, layout.SubTextures[3])
	for i := range layout.SubTextures {
		for j := i + 1; j < len(layout.SubTextures); j++ {
			assert.False(t, layout.SubTextures[i].Rect().Overlaps(layout.SubTextures[j].Rect()))
		}
	}

	assert.Equal(t, red, sheet.NRGBAAt(0, 0))
	assert.Equal(t, green, sheet.NRGBAAt(130, 0))
	assert.Equal(t, white, sheet.NRGBAAt(257, 257))
	assert.Equal(t, color.NRGBA{}, sheet.NRGBAAt(128, 0))
	assert.Equal(t, color.NRGBA{}, sheet.NRGBAAt(259, 259))
}

func TestComposeAppend(t *testing.T) {
	dir := t.TempDir()
	existing := solidImage(466, 128, blue)
	prior := &TextureAtlas{
		ImagePath: "old",
		Width:     466,
		Height:    128,
		SubTextures: []SubTexture{
			{Name: "Decal_tmb_00000001.png", X: 0, Y: 0, Width: 128, Height: 128},
			{Name: "Decal_tmb_00000002.png", X: 130, Y: 0, Width: 128, Height: 128},
		},
	}
	images := map[int]string{7: writeSolidPNG(t, filepath.Join(dir, "r.png"), 232, 128, red)}
	opt := rankAtlas
	sheet, layout, err := Compose(images, opt, existing, prior)
	require.NoError(t, err)

	assert.Equal(t, 700, layout.Width)
	assert.Equal(t, 128, layout.Height)
	assert.Equal(t, image.Rect(0, 0, 700, 128), sheet.Bounds())
	require.Len(t, layout.SubTextures, 3)
	assert.Equal(t, prior.SubTextures, layout.SubTextures[:2])
	assert.Equal(t, SubTexture{Name: "CustomArenaRank_00007.png", X: 466, Y: 0, Width: 232, Height: 128}, layout.SubTextures[2])
	assert.Equal(t, blue, sheet.NRGBAAt(465, 127))
	assert.Equal(t, red, sheet.NRGBAAt(466, 0))
	assert.Equal(t, color.NRGBA{}, sheet.NRGBAAt(699, 0))
}

func TestComposeDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	bad := writeSolidPNG(t, filepath.Join(dir, "bad.png"), 100, 128, red)
	_, _, err := Compose(map[int]string{
		1: writeSolidPNG(t, filepath.Join(dir, "ok.png"), 128, 128, red),
		2: bad,
	}, decalAtlas, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDimension))
	var de *DimensionError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, bad, de.Path)
	assert.Equal(t, image.Pt(128, 128), de.Want)
	assert.Equal(t, image.Pt(100, 128), de.Got)
}

func TestTextureAtlasSaveLoad(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "SB_DecalThumbnails.layout"),
		`<?xml version="1.0" encoding="UTF-8"?>
<TextureAtlas imagePath="W:\x.png" width="256" height="128">
	<SubTexture name="Decal_tmb_00000001.png" x="0" y="0" width="128" height="128" frameX="3"/>
</TextureAtlas>
`)
	a, err := LoadTextureAtlas(path)
	require.NoError(t, err)
	assert.Equal(t, 256, a.Width)
	require.Len(t, a.SubTextures, 1)
	require.Len(t, a.SubTextures[0].Extra, 1)
	assert.Equal(t, "frameX", a.SubTextures[0].Extra[0].Name.Local)

	require.NoError(t, a.Save(path))
	again, err := LoadTextureAtlas(path)
	require.NoError(t, err)
	assert.Equal(t, a.SubTextures, again.SubTextures)
	assert.Equal(t, a.ImagePath, again.ImagePath)
}

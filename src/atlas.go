package main

import (
	"encoding/xml"
	"fmt"
	"image"
	"math"
	"os"
	"strconv"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/image/draw"
)

type SubTexture struct {
	Name   string     `xml:"name,attr"`
	X      int        `xml:"x,attr"`
	Y      int        `xml:"y,attr"`
	Width  int        `xml:"width,attr"`
	Height int        `xml:"height,attr"`
	Extra  []xml.Attr `xml:",any,attr"`
}

func (s SubTexture) Rect() image.Rectangle {
	return image.Rect(s.X, s.Y, s.X+s.Width, s.Y+s.Height)
}

// TextureAtlas is the .layout descriptor of a sprite sheet.
type TextureAtlas struct {
	XMLName     xml.Name     `xml:"TextureAtlas"`
	ImagePath   string       `xml:"imagePath,attr"`
	Width       int          `xml:"width,attr"`
	Height      int          `xml:"height,attr"`
	SubTextures []SubTexture `xml:"SubTexture"`
}

func LoadTextureAtlas(path string) (*TextureAtlas, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a TextureAtlas
	if err := xml.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("%w: failed to parse layout %v: %v", ErrInput, path, err)
	}
	return &a, nil
}

func (a *TextureAtlas) Save(path string) error {
	b, err := xml.MarshalIndent(a, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append([]byte(xml.Header), append(b, '\n')...), 0644)
}

type DimensionError struct {
	Path      string
	Want, Got image.Point
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("image %v has incorrect dimensions: expected %dx%d, got %dx%d",
		e.Path, e.Want.X, e.Want.Y, e.Got.X, e.Got.Y)
}

func (e *DimensionError) Unwrap() error {
	return ErrDimension
}

// AtlasOptions describes the cells of a sheet and how they are named.
type AtlasOptions struct {
	Name       string // sheet name, without extension
	RootName   string // atlas folder the sheet belongs to
	CellWidth  int
	CellHeight int
	Prefix     string
	IDPad      int
	Gap        int
}

func (o AtlasOptions) imagePath() string {
	return fmt.Sprintf(`W:\FNR\data\Menu\ScaleForm\Tif\01_Common\%v\Hi\exp\%v.png`, o.RootName, o.Name)
}

func (o AtlasOptions) cellName(key int) string {
	s := strconv.Itoa(key)
	for len(s) < o.IDPad {
		s = "0" + s
	}
	return fmt.Sprintf("%v_%v.png", o.Prefix, s)
}

// gridSize splits n cells into a near-square grid.
func gridSize(n int) (cols, rows int) {
	if n <= 0 {
		return 0, 0
	}
	square := int(math.Ceil(math.Sqrt(float64(n))))
	rows = (n + square - 1) / square
	cols = (n + rows - 1) / rows
	return cols, rows
}

// Compose packs the images, keyed and ordered by ascending key, into a
// sheet. Without an existing sheet a new grid is laid out; otherwise every
// image is appended as a new column on row 0 to the right of the existing
// pixels, and existing layout entries are kept. The canvas is then rounded
// up to a multiple of 4 on both axes.
func Compose(images map[int]string, opt AtlasOptions, existing image.Image, layout *TextureAtlas) (*image.NRGBA, *TextureAtlas, error) {
	keys := maps.Keys(images)
	slices.Sort(keys)

	cells := make([]image.Image, len(keys))
	want := image.Pt(opt.CellWidth, opt.CellHeight)
	for i, k := range keys {
		img, err := decodeImage(images[k])
		if err != nil {
			return nil, nil, err
		}
		if got := img.Bounds().Size(); got != want {
			return nil, nil, &DimensionError{Path: images[k], Want: want, Got: got}
		}
		cells[i] = img
	}

	out := &TextureAtlas{ImagePath: opt.imagePath()}
	var width, height, cols int
	if existing == nil {
		var rows int
		cols, rows = gridSize(len(cells))
		width = cols*opt.CellWidth + max(cols-1, 0)*opt.Gap
		height = rows*opt.CellHeight + max(rows-1, 0)*opt.Gap
	} else {
		width, height = existing.Bounds().Dx(), max(existing.Bounds().Dy(), opt.CellHeight)
		if layout != nil {
			out.SubTextures = append(out.SubTextures, layout.SubTextures...)
		}
	}

	// Cell positions first; the canvas size is only known afterwards in
	// append mode.
	rects := make([]image.Rectangle, len(cells))
	for i := range cells {
		var x, y int
		if existing == nil {
			x = (i % cols) * (opt.CellWidth + opt.Gap)
			y = (i / cols) * (opt.CellHeight + opt.Gap)
		} else {
			x, y = width, 0
			width += opt.CellWidth + opt.Gap
		}
		st := SubTexture{Name: opt.cellName(keys[i]), X: x, Y: y, Width: opt.CellWidth, Height: opt.CellHeight}
		rects[i] = st.Rect()
		out.SubTextures = append(out.SubTextures, st)
	}

	out.Width, out.Height = roundUp4(width), roundUp4(height)
	sheet := image.NewNRGBA(image.Rect(0, 0, out.Width, out.Height))
	if existing != nil {
		draw.Draw(sheet, existing.Bounds().Sub(existing.Bounds().Min), existing, existing.Bounds().Min, draw.Src)
	}
	for i, img := range cells {
		draw.Draw(sheet, rects[i], img, img.Bounds().Min, draw.Src)
	}
	return sheet, out, nil
}

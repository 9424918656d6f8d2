package main

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
)

// Tool is a synchronous external program. Run blocks until the program
// exits and returns its captured output.
type Tool interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

// ExecTool runs an executable on disk.
type ExecTool struct {
	Path string
	// Dir is the working directory; empty means the executable's folder.
	Dir string
}

func (t ExecTool) Run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, t.Path, args...)
	cmd.Dir = t.Dir
	if cmd.Dir == "" {
		cmd.Dir = filepath.Dir(t.Path)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return out.Bytes(), &ToolError{
			Tool:     filepath.Base(t.Path),
			Args:     args,
			ExitCode: code,
			Output:   out.Bytes(),
			Err:      err,
		}
	}
	return out.Bytes(), nil
}

// Toolchain groups every collaborator the compile shells out to.
type Toolchain struct {
	Witchy   Tool // archive unpack/repack
	FFDec    Tool // gfx <-> xml
	Texconv  Tool // raster -> dds and back
	Bnk2JSON Tool
	FNVHash  Tool
	Wwise    Tool // WwiseConsole
}

func NewToolchain(c *Config) *Toolchain {
	return &Toolchain{
		Witchy:   ExecTool{Path: c.Tools.Witchy},
		FFDec:    ExecTool{Path: c.Tools.FFDec},
		Texconv:  ExecTool{Path: c.Tools.Texconv},
		Bnk2JSON: ExecTool{Path: c.Tools.Bnk2JSON},
		FNVHash:  ExecTool{Path: c.Tools.FNVHash},
		Wwise:    ExecTool{Path: c.Tools.WwiseConsole},
	}
}

// ArchiveDir returns the folder an archive unpacks to: the same path with
// dots in the file name replaced by dashes.
func ArchiveDir(path string) string {
	dir, base := filepath.Split(path)
	return filepath.Join(dir, strings.ReplaceAll(base, ".", "-"))
}

// UnpackArchive extracts an archive next to itself. Recursive also unpacks
// nested containers.
func (tc *Toolchain) UnpackArchive(ctx context.Context, path string, recursive bool) error {
	args := []string{"-s"}
	if recursive {
		args = append(args, "-c")
	}
	_, err := tc.Witchy.Run(ctx, append(args, path)...)
	return err
}

// RepackArchive rebuilds an archive (or a single serialized member) from
// its unpacked form.
func (tc *Toolchain) RepackArchive(ctx context.Context, path string) error {
	_, err := tc.Witchy.Run(ctx, "-s", path)
	return err
}

// ConvertToDDS compresses a raster into dir as <name>.dds.
func (tc *Toolchain) ConvertToDDS(ctx context.Context, src, dir string) (string, error) {
	if _, err := tc.Texconv.Run(ctx, "-f", "BC7_UNORM", src, "-o", dir, "-y"); err != nil {
		return "", err
	}
	return filepath.Join(dir, strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))+".dds"), nil
}

// ConvertToPNG decompresses a dds into dir as <name>.png.
func (tc *Toolchain) ConvertToPNG(ctx context.Context, src, dir string) (string, error) {
	if _, err := tc.Texconv.Run(ctx, "-ft", "png", src, "-o", dir, "-y"); err != nil {
		return "", err
	}
	return filepath.Join(dir, strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))+".png"), nil
}

// DecompileGFX writes the xml form of a compiled UI container.
func (tc *Toolchain) DecompileGFX(ctx context.Context, gfx, xmlPath string) error {
	_, err := tc.FFDec.Run(ctx, "-swf2xml", gfx, xmlPath)
	return err
}

// CompileGFX rebuilds the container from its xml form.
func (tc *Toolchain) CompileGFX(ctx context.Context, xmlPath, gfx string) error {
	_, err := tc.FFDec.Run(ctx, "-xml2swf", xmlPath, gfx)
	return err
}

package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Hasher names runtime audio objects.
type Hasher interface {
	Hash(s string) (uint32, error)
}

// OracleHasher asks the fnv-hash tool shipped with the sound bank tooling,
// so the result always matches what the audio engine expects.
type OracleHasher struct {
	ctx   context.Context
	tool  Tool
	cache map[string]uint32
}

func NewOracleHasher(ctx context.Context, tool Tool) *OracleHasher {
	return &OracleHasher{ctx: ctx, tool: tool, cache: make(map[string]uint32)}
}

func (h *OracleHasher) Hash(s string) (uint32, error) {
	if v, ok := h.cache[s]; ok {
		return v, nil
	}
	out, err := h.tool.Run(h.ctx, "--input", s)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(out)), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: fnv-hash returned %q for %q", ErrTool, strings.TrimSpace(string(out)), s)
	}
	h.cache[s] = uint32(v)
	return uint32(v), nil
}

// BuiltinHasher is the 32-bit FNV-1 of the lowercased name.
type BuiltinHasher struct{}

func (BuiltinHasher) Hash(s string) (uint32, error) {
	f := fnv.New32()
	f.Write([]byte(strings.ToLower(s)))
	return f.Sum32(), nil
}

func newHasher(ctx context.Context, mode string, tc *Toolchain) Hasher {
	if mode == "builtin" {
		return BuiltinHasher{}
	}
	return NewOracleHasher(ctx, tc.FNVHash)
}

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
	"github.com/yuin/gopher-lua/ast"
	"github.com/yuin/gopher-lua/parse"
)

// logicGlobals are the entry points the game calls on an npc logic script.
func logicGlobals(id int) []string {
	return []string{
		fmt.Sprintf("LogicInitialSetup_%d", id),
		fmt.Sprintf("InterruptCallBack_%d", id),
	}
}

// scriptID is the id a logic script file is named after: the part of the
// name before the first underscore.
func scriptID(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '_'); i > 0 {
		return base[:i]
	}
	return ""
}

// rewriteLogicID replaces every occurrence of the script's original id.
func rewriteLogicID(src []byte, oldID string, newID int) []byte {
	if oldID == "" {
		return src
	}
	return bytes.ReplaceAll(src, []byte(oldID), []byte(strconv.Itoa(newID)))
}

// definedGlobals collects names assigned or declared as functions at the top
// level of a chunk.
func definedGlobals(chunk []ast.Stmt) map[string]bool {
	names := make(map[string]bool)
	for _, st := range chunk {
		switch s := st.(type) {
		case *ast.FuncDefStmt:
			if s.Name != nil && s.Name.Receiver == nil {
				if id, ok := s.Name.Func.(*ast.IdentExpr); ok {
					names[id.Value] = true
				}
			}
		case *ast.AssignStmt:
			for _, lhs := range s.Lhs {
				if id, ok := lhs.(*ast.IdentExpr); ok {
					names[id.Value] = true
				}
			}
		}
	}
	return names
}

// checkLogicScript parses the script and returns the entry points it lacks.
func checkLogicScript(src []byte, name string, id int) ([]string, error) {
	chunk, err := parse.Parse(bytes.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInput, err)
	}
	defined := definedGlobals(chunk)
	var missing []string
	for _, g := range logicGlobals(id) {
		if !defined[g] {
			missing = append(missing, g)
		}
	}
	return missing, nil
}

// InstallLogicScript copies a custom npc logic script into its own script
// binder under the npc id and builds the binder.
func InstallLogicScript(ctx context.Context, m *ModFS, src string, npcID int, log zerolog.Logger) error {
	raw, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	oldID := scriptID(src)
	if oldID == "" {
		log.Warn().Str("file", src).Msg("script name has no id prefix, ids left as is")
	}
	code := rewriteLogicID(raw, oldID, npcID)
	missing, err := checkLogicScript(code, filepath.Base(src), npcID)
	if err != nil {
		return inputErrorf(filepath.Dir(src), "%v", err)
	}
	for _, g := range missing {
		log.Warn().Str("file", src).Str("global", g).Msg("logic entry point not defined")
	}

	name := logicName(npcID)
	dir := m.Path("script", name+"-luabnd-dcx")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, name+".lua"), code, 0644); err != nil {
		return err
	}
	gnl := filepath.Join(dir, name+".luagnl.xml")
	if err := writeLuagnl(gnl, npcID); err != nil {
		return err
	}
	if err := m.tc.RepackArchive(ctx, gnl); err != nil {
		return err
	}
	if err := writeLuaBND(dir, npcID); err != nil {
		return err
	}
	return m.tc.RepackArchive(ctx, dir)
}

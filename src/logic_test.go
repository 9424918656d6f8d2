package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLogic = `-- think script
function LogicInitialSetup_12345(ai)
    ai:SetNumber(0, 12345)
end

InterruptCallBack_12345 = function(ai, goal)
    return false
end
`

func TestScriptID(t *testing.T) {
	assert.Equal(t, "12345", scriptID(filepath.Join("fights", "a", "12345_logic.lua")))
	assert.Equal(t, "", scriptID("logic.lua"))
	assert.Equal(t, "", scriptID("_logic.lua"))
}

func TestRewriteLogicID(t *testing.T) {
	out := string(rewriteLogicID([]byte(sampleLogic), "12345", 90000))
	assert.Contains(t, out, "function LogicInitialSetup_90000(ai)")
	assert.Contains(t, out, "InterruptCallBack_90000 = function")
	assert.Contains(t, out, "ai:SetNumber(0, 90000)")
	assert.NotContains(t, out, "12345")

	assert.Equal(t, sampleLogic, string(rewriteLogicID([]byte(sampleLogic), "", 90000)))
}

func TestCheckLogicScript(t *testing.T) {
	missing, err := checkLogicScript([]byte(sampleLogic), "12345_logic.lua", 12345)
	require.NoError(t, err)
	assert.Empty(t, missing)

	missing, err = checkLogicScript([]byte("local x = 1\n"), "empty.lua", 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"LogicInitialSetup_7", "InterruptCallBack_7"}, missing)

	_, err = checkLogicScript([]byte("function (\n"), "broken.lua", 7)
	assert.True(t, errors.Is(err, ErrInput))
}

func TestInstallLogicScript(t *testing.T) {
	m, witchy := newTestModFS(t)
	src := writeFile(t, filepath.Join(t.TempDir(), "12345_logic.lua"), sampleLogic)

	require.NoError(t, InstallLogicScript(context.Background(), m, src, 90000, zerolog.Nop()))
	dir := m.Path("script", "90000_logic-luabnd-dcx")
	assert.Contains(t, readFile(t, filepath.Join(dir, "90000_logic.lua")), "LogicInitialSetup_90000")
	assert.FileExists(t, filepath.Join(dir, "90000_logic.luagnl.xml"))
	assert.FileExists(t, filepath.Join(dir, "_witchy-bnd4.xml"))
	assert.Equal(t, []string{filepath.Join(dir, "90000_logic.luagnl.xml"), dir}, witchy.lastArgs())
}

func TestInstallLogicScriptParseError(t *testing.T) {
	m, witchy := newTestModFS(t)
	src := writeFile(t, filepath.Join(t.TempDir(), "5_logic.lua"), "function (\n")
	err := InstallLogicScript(context.Background(), m, src, 90000, zerolog.Nop())
	assert.True(t, errors.Is(err, ErrInput))
	assert.Equal(t, 0, witchy.callCount())
}

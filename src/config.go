package main

import (
	_ "embed" // Support for go:embed resources
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

//go:embed resources/defaultConfig.ini
var defaultConfig []byte

type PathsProperties struct {
	GameFolder   string `ini:"GameFolder"`
	ModFolder    string `ini:"ModFolder"`
	FightsFolder string `ini:"FightsFolder"`
	WorkFolder   string `ini:"WorkFolder"`
}

type ToolsProperties struct {
	Witchy       string `ini:"Witchy"`
	FFDec        string `ini:"FFDec"`
	Texconv      string `ini:"Texconv"`
	Bnk2JSON     string `ini:"Bnk2JSON"`
	FNVHash      string `ini:"FNVHash"`
	WwiseConsole string `ini:"WwiseConsole"`
}

// ConstantsProperties are the fixed ids of the game data the compile clones
// from and allocates after.
type ConstantsProperties struct {
	BaselineAC         int    `ini:"BaselineAC"`
	BaseTalkAccountID  int    `ini:"BaseTalkAccountID"`
	MenuCategory       int    `ini:"MenuCategory"`
	ParamNamePrefix    string `ini:"ParamNamePrefix"`
	StartingArenaID    int    `ini:"StartingArenaID"`
	StartingArenaRank  int    `ini:"StartingArenaRank"`
	StartingAccountID  int    `ini:"StartingAccountID"`
	StartingNpcCharaID int    `ini:"StartingNpcCharaID"`
}

// Config is the top-level config structure. It is built once at startup and
// handed to the compiler.
type Config struct {
	Def       string
	IniFile   *ini.File
	Paths     PathsProperties     `ini:"Paths"`
	Tools     ToolsProperties     `ini:"Tools"`
	Constants ConstantsProperties `ini:"Constants"`
	Fights    struct {
		Order []string `ini:"Order" delim:","`
	} `ini:"Fights"`
	Hash struct {
		Mode string `ini:"Mode"`
	} `ini:"Hash"`
	Progress struct {
		ListenAddr string `ini:"ListenAddr"`
	} `ini:"Progress"`
}

// Loads and parses the INI file into a Config struct.
func loadConfig(def string) (*Config, error) {
	// https://github.com/go-ini/ini/blob/main/ini.go
	options := ini.LoadOptions{
		Insensitive:             false,
		IgnoreInlineComment:     false,
		SkipUnrecognizableLines: true,
		AllowShadows:            false,
		UnparseableSections:     []string{},
		//AllowPythonMultilineValues: false,
		//KeyValueDelimiters: "=:",
	}

	var iniFile *ini.File
	var err error
	if _, statErr := os.Stat(def); def == "" || statErr != nil {
		iniFile, err = ini.LoadSources(options, defaultConfig)
	} else {
		iniFile, err = ini.LoadSources(options, defaultConfig, def)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %v", err)
	}
	var c Config
	if err := iniFile.MapTo(&c); err != nil {
		return nil, fmt.Errorf("failed to map config: %v", err)
	}
	c.Def = def
	c.IniFile = iniFile
	c.normalize()
	return &c, nil
}

// Normalize values
func (c *Config) normalize() {
	slash := func(p string) string {
		return strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	}
	c.SetValue("Paths", "GameFolder", slash(c.Paths.GameFolder))
	c.SetValue("Paths", "ModFolder", slash(c.Paths.ModFolder))
	c.SetValue("Paths", "FightsFolder", slash(c.Paths.FightsFolder))
	c.SetValue("Paths", "WorkFolder", slash(c.Paths.WorkFolder))
	if c.Paths.WorkFolder == "" {
		c.SetValue("Paths", "WorkFolder", filepath.ToSlash(filepath.Join(c.Paths.ModFolder, "..", "work")))
	}

	order := c.Fights.Order[:0]
	for _, name := range c.Fights.Order {
		if name = strings.TrimSpace(name); name != "" {
			order = append(order, name)
		}
	}
	c.Fights.Order = order

	switch strings.ToLower(strings.TrimSpace(c.Hash.Mode)) {
	case "builtin":
		c.SetValue("Hash", "Mode", "builtin")
	default:
		c.SetValue("Hash", "Mode", "oracle")
	}

	// Starting ids must not go below zero; the rank counts down from its start.
	k := &c.Constants
	for key, v := range map[string]*int{
		"StartingArenaID":    &k.StartingArenaID,
		"StartingAccountID":  &k.StartingAccountID,
		"StartingNpcCharaID": &k.StartingNpcCharaID,
		"StartingArenaRank":  &k.StartingArenaRank,
		"MenuCategory":       &k.MenuCategory,
	} {
		if *v < 0 {
			*v = 0
			c.IniFile.Section("Constants").Key(key).SetValue("0")
		}
	}
}

// SetValue updates a string field and the backing ini key together.
func (c *Config) SetValue(section, key, value string) {
	switch section + "." + key {
	case "Paths.GameFolder":
		c.Paths.GameFolder = value
	case "Paths.ModFolder":
		c.Paths.ModFolder = value
	case "Paths.FightsFolder":
		c.Paths.FightsFolder = value
	case "Paths.WorkFolder":
		c.Paths.WorkFolder = value
	case "Hash.Mode":
		c.Hash.Mode = value
	case "Progress.ListenAddr":
		c.Progress.ListenAddr = value
	case "Fights.Order":
		c.Fights.Order = nil
		for _, s := range strings.Split(value, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.Fights.Order = append(c.Fights.Order, s)
			}
		}
	default:
		if section == "Constants" {
			if n, err := strconv.Atoi(value); err == nil {
				c.setConstant(key, n)
			}
		}
	}
	if c.IniFile != nil {
		c.IniFile.Section(section).Key(key).SetValue(value)
	}
}

func (c *Config) setConstant(key string, n int) {
	switch key {
	case "BaselineAC":
		c.Constants.BaselineAC = n
	case "BaseTalkAccountID":
		c.Constants.BaseTalkAccountID = n
	case "MenuCategory":
		c.Constants.MenuCategory = n
	case "StartingArenaID":
		c.Constants.StartingArenaID = n
	case "StartingArenaRank":
		c.Constants.StartingArenaRank = n
	case "StartingAccountID":
		c.Constants.StartingAccountID = n
	case "StartingNpcCharaID":
		c.Constants.StartingNpcCharaID = n
	}
}

// Save writes the current IniFile to disk, preserving comments and syntax.
func (c *Config) Save(file string) error {
	if file == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return err
	}
	return c.IniFile.SaveTo(file)
}

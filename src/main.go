package main

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/rs/zerolog"
)

var Version = "development"
var BuildTime = "" // Set by the release build

var cmdFlags map[string]string

// Checks if error is not null, if there is an error it displays a error dialogue box and exits.
func chk(err error) {
	if err != nil {
		ShowErrorDialog(err.Error())
		os.Exit(1)
	}
}

func newLogger(file string) (zerolog.Logger, func() error) {
	w, closeLog := NewLogWriter(file)
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: file != ""}
	return zerolog.New(out).With().Timestamp().Logger(), closeLog
}

func main() {
	// Make save directory, if it doesn't exist
	os.Mkdir("save", os.ModeSticky|0755)

	processCommandLine()
	if cmdFlags == nil {
		cmdFlags = make(map[string]string)
	}

	// Config file path
	if _, ok := cmdFlags["-config"]; !ok {
		cmdFlags["-config"] = "save/config.ini"
	}
	cfg, err := loadConfig(cmdFlags["-config"])
	chk(err)
	// New keys from the defaults end up in the user's file.
	chk(cfg.Save(cmdFlags["-config"]))
	applyFlags(cfg)

	log, closeLog := newLogger(cmdFlags["-log"])
	defer closeLog()
	log.Info().Str("version", Version).Str("config", cmdFlags["-config"]).Msg("arena maker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	progress := logProgress(log)
	if cfg.Progress.ListenAddr != "" {
		hub := NewProgressHub(log)
		defer hub.Close()
		go func() {
			if err := hub.ListenAndServe(ctx, cfg.Progress.ListenAddr); err != nil {
				log.Error().Err(err).Msg("progress server stopped")
			}
		}()
		progress = teeProgress(progress, hub.Report)
	}

	tc := NewToolchain(cfg)
	c := NewCompiler(cfg, tc, newHasher(ctx, cfg.Hash.Mode, tc), log, progress)
	if err := c.Compile(ctx); err != nil {
		log.Error().Err(err).Msg("compile failed")
		// chk exits without running deferred calls.
		closeLog()
		chk(fmt.Errorf("compile failed: %w", err))
	}
	ShowInfoDialog(fmt.Sprintf("Mod written to %v", cfg.Paths.ModFolder), "Arena Maker")
}

// applyFlags overrides config values given on the command line.
func applyFlags(cfg *Config) {
	for flag, key := range map[string][2]string{
		"-fights":   {"Paths", "FightsFolder"},
		"-mod":      {"Paths", "ModFolder"},
		"-game":     {"Paths", "GameFolder"},
		"-work":     {"Paths", "WorkFolder"},
		"-order":    {"Fights", "Order"},
		"-progress": {"Progress", "ListenAddr"},
		"-hash":     {"Hash", "Mode"},
	} {
		if v, ok := cmdFlags[flag]; ok && v != "" {
			cfg.SetValue(key[0], key[1], v)
		}
	}
}

// Loops through given comand line arguments and processes them for later use
func processCommandLine() {
	if len(os.Args[1:]) == 0 {
		return
	}
	cmdFlags = make(map[string]string)
	key := ""
	r1, _ := regexp.Compile("^-[h%?]$")
	r2, _ := regexp.Compile("^-")
	for _, a := range os.Args[1:] {
		if key != "" && !r2.MatchString(a) {
			cmdFlags[key] = a
			key = ""
		} else if r2.MatchString(a) {
			// If getting help about command line options
			if r1.MatchString(a) {
				text := `Options (case sensitive):
-h -?                   Help
-config <file>          Loads settings from <file> (default save/config.ini)
-log <logfile>          Also writes the log to <logfile>
-game <path>            Game folder the original files are copied from
-mod <path>             Mod folder to generate (deleted and recreated)
-fights <path>          Folder holding the fight folders
-work <path>            Folder for intermediate files
-order <a,b,c>          Fight folders to compile, in order
-hash <mode>            Audio id hashing: oracle or builtin
-progress <addr>        Serves progress over websocket on <addr>/progress`
				fmt.Printf("Arena Maker %v command line options\n\n%v\n", Version, text)
				os.Exit(0)
			}
			cmdFlags[a] = ""
			key = a
		}
	}
	if key != "" {
		cmdFlags[key] = "true"
	}
}

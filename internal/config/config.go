// Package config loads a game definition from YAML and applies the
// environment overrides the CLI and API server share.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MJE43/stake-cycles/internal/driver"
	"github.com/MJE43/stake-cycles/internal/logic"
)

const (
	appConfigDirName = "stake-cycles"
	dbFileName       = "cycles.db"

	DefaultAPIPort = 17888
)

var ErrInvalid = errors.New("config: invalid game definition")

// StageConfig names a stage and the script that evaluates it. Exactly one
// of Script and ScriptFile is set.
type StageConfig struct {
	Name       string `yaml:"name"`
	Script     string `yaml:"script,omitempty"`
	ScriptFile string `yaml:"script_file,omitempty"`
	TimeoutMS  int    `yaml:"timeout_ms,omitempty"`
}

type SeedsConfig struct {
	Server string `yaml:"server"`
	Client string `yaml:"client"`
}

// GameConfig models the game definition file.
type GameConfig struct {
	Name         string                  `yaml:"name"`
	InitialStage string                  `yaml:"initial_stage"`
	MaxRounds    int                     `yaml:"max_rounds,omitempty"`
	Seeds        SeedsConfig             `yaml:"seeds"`
	Inputs       []string                `yaml:"inputs,omitempty"`
	Stages       []StageConfig           `yaml:"stages"`
	Connections  []logic.StageConnection `yaml:"connections,omitempty"`
}

// Config is a loaded game definition plus the runtime settings.
type Config struct {
	// Path is the definition file; relative script files resolve against
	// its directory.
	Path string

	DBPath  string
	APIPort int

	Game GameConfig
}

// Load reads the definition at path, applies defaults and environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	cfg.Path = path
	return cfg, nil
}

// Parse decodes a definition whose script files live under baseDir.
func Parse(data []byte, baseDir string) (*Config, error) {
	var game GameConfig
	if err := yaml.Unmarshal(data, &game); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	cfg := &Config{
		DBPath:  DefaultDBPath(),
		APIPort: DefaultAPIPort,
		Game:    game,
	}
	cfg.Game.applyDefaults()
	cfg.Game.normalize(baseDir)
	cfg.applyEnv()

	if err := cfg.Game.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DBPath = envString("CYCLES_DB_PATH", c.DBPath)
	c.APIPort = envInt("CYCLES_API_PORT", c.APIPort)
	c.Game.Seeds.Server = envString("CYCLES_SERVER_SEED", c.Game.Seeds.Server)
	c.Game.Seeds.Client = envString("CYCLES_CLIENT_SEED", c.Game.Seeds.Client)
}

func (g *GameConfig) applyDefaults() {
	if g.MaxRounds == 0 {
		g.MaxRounds = driver.DefaultMaxRounds
	}
	if strings.TrimSpace(g.Name) == "" {
		g.Name = strings.TrimSpace(g.InitialStage)
	}
}

func (g *GameConfig) normalize(base string) {
	g.Name = strings.TrimSpace(g.Name)
	g.InitialStage = strings.TrimSpace(g.InitialStage)
	for i := range g.Stages {
		s := &g.Stages[i]
		s.Name = strings.TrimSpace(s.Name)
		s.ScriptFile = resolvePath(base, s.ScriptFile)
	}
	for i := range g.Inputs {
		g.Inputs[i] = strings.TrimSpace(g.Inputs[i])
	}
}

func (g *GameConfig) validate() error {
	if g.InitialStage == "" {
		return fmt.Errorf("initial_stage is required")
	}
	if g.MaxRounds < 0 {
		return fmt.Errorf("max_rounds must be > 0")
	}
	if g.Seeds.Server == "" || g.Seeds.Client == "" {
		return fmt.Errorf("seeds.server and seeds.client are required")
	}
	if len(g.Stages) == 0 {
		return fmt.Errorf("at least one stage is required")
	}

	declared := make(map[string]bool, len(g.Stages))
	for i, s := range g.Stages {
		if err := s.validate(); err != nil {
			return fmt.Errorf("stages[%d]: %w", i, err)
		}
		if declared[s.Name] {
			return fmt.Errorf("stages[%d]: duplicate stage %q", i, s.Name)
		}
		declared[s.Name] = true
	}
	if !declared[g.InitialStage] {
		return fmt.Errorf("initial_stage %q is not a declared stage", g.InitialStage)
	}
	for i, c := range g.Connections {
		for _, end := range []string{c.InitialStage, c.FinalStage} {
			if !declared[end] {
				return fmt.Errorf("connections[%d]: stage %q is not declared", i, end)
			}
		}
	}
	if _, err := logic.NewStageGraph(g.Connections); err != nil {
		return err
	}
	if _, err := g.BaseInputs(); err != nil {
		return err
	}
	return nil
}

func (s StageConfig) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	hasInline := strings.TrimSpace(s.Script) != ""
	if hasInline == (s.ScriptFile != "") {
		return fmt.Errorf("stage %q needs exactly one of script and script_file", s.Name)
	}
	if s.TimeoutMS < 0 {
		return fmt.Errorf("stage %q: timeout_ms must be >= 0", s.Name)
	}
	return nil
}

// BaseInputs parses the configured inputs. Each entry is one canonical
// input line; the "Cycles" input is owned by the driver and rejected.
func (g *GameConfig) BaseInputs() (logic.Inputs, error) {
	items := make([]logic.Input, 0, len(g.Inputs))
	for i, line := range g.Inputs {
		in, err := logic.ParseInput(line)
		if err != nil {
			return logic.Inputs{}, fmt.Errorf("inputs[%d]: %w", i, err)
		}
		if in.Name() == logic.CyclesInputName {
			return logic.Inputs{}, fmt.Errorf("inputs[%d]: %q is set by the driver", i, logic.CyclesInputName)
		}
		items = append(items, in)
	}
	return logic.NewInputs(items...)
}

// DefaultDBPath places the audit database in the user config directory.
func DefaultDBPath() string {
	return filepath.Join(appDataDir(), dbFileName)
}

func appDataDir() string {
	if d, err := os.UserConfigDir(); err == nil && d != "" {
		return filepath.Join(d, appConfigDirName)
	}
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return filepath.Join(h, "."+appConfigDirName)
	}
	return "."
}

// DefaultTokenFallbackPath is where API tokens go when no keychain exists.
func DefaultTokenFallbackPath() string {
	return filepath.Join(appDataDir(), "tokens.json")
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func envString(k, def string) string {
	if s := os.Getenv(k); s != "" {
		return s
	}
	return def
}

func envInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		var v int
		if _, err := fmt.Sscanf(s, "%d", &v); err == nil {
			return v
		}
	}
	return def
}

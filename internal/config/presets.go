package config

import "sort"

// Presets are grouped by scene kind. Each entry adjusts DefaultConfig.
var Presets = map[string]map[string]func(*Config){
	"empty": {
		"default": func(c *Config) {},
		"single_thread": func(c *Config) {
			c.Jobs.Threads = 0
		},
		"substeps": func(c *Config) {
			c.Step.CollisionSteps = 2
			c.Step.IntegrationSubSteps = 4
		},
	},
	"pile": {
		"small": func(c *Config) {
			c.Scene.Bodies = 20
		},
		"large": func(c *Config) {
			c.Scene.Bodies = 300
			c.Frames = 1200
		},
		"stress": func(c *Config) {
			c.Scene.Bodies = 1000
			c.Scene.Height = 40
			c.Physics.MaxBodyPairs = 256
			c.Frames = 1200
		},
	},
	"chain": {
		"short": func(c *Config) {
			c.Scene.Bodies = 8
		},
		"long": func(c *Config) {
			c.Scene.Bodies = 32
			c.Step.IntegrationSubSteps = 2
		},
	},
}

func GetPreset(kind, preset string) *Config {
	kindPresets, ok := Presets[kind]
	if !ok {
		return nil
	}
	apply, ok := kindPresets[preset]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Scene.Kind = kind
	apply(cfg)
	return cfg
}

func ListPresets(kind string) []string {
	kindPresets, ok := Presets[kind]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(kindPresets))
	for name := range kindPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Kinds lists the scene kinds that have presets.
func Kinds() []string {
	kinds := make([]string, 0, len(Presets))
	for k := range Presets {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

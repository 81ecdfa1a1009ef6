package main

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/san-kum/rigidsim/internal/config"
	"github.com/spf13/cobra"
)

func newTestCmd(t *testing.T) *cobra.Command {
	t.Helper()
	configFile, preset, logLevel = "", "", ""
	cmd := &cobra.Command{Use: "test"}
	addStepFlags(cmd)
	return cmd
}

func TestLoadConfigDefaults(t *testing.T) {
	cmd := newTestCmd(t)
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Frames != config.DefaultFrames {
		t.Errorf("expected %d frames, got %d", config.DefaultFrames, cfg.Frames)
	}
}

func TestLoadConfigPresetAndFlags(t *testing.T) {
	cmd := newTestCmd(t)
	preset = "pile/small"
	if err := cmd.Flags().Set("frames", "42"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("substeps", "3"); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scene.Kind != "pile" || cfg.Scene.Bodies != 20 {
		t.Errorf("expected pile/small scene, got %+v", cfg.Scene)
	}
	if cfg.Frames != 42 || cfg.Step.IntegrationSubSteps != 3 {
		t.Errorf("expected flag overrides, got frames=%d substeps=%d", cfg.Frames, cfg.Step.IntegrationSubSteps)
	}
}

func TestLoadConfigFileThenArgs(t *testing.T) {
	cmd := newTestCmd(t)
	path := filepath.Join(t.TempDir(), "sim.yaml")
	saved := config.DefaultConfig()
	saved.Frames = 7
	saved.Scene.Kind = "pile"
	if err := config.Save(path, saved); err != nil {
		t.Fatalf("save: %v", err)
	}
	configFile = path

	cfg, err := loadConfig(cmd, []string{"chain"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Frames != 7 {
		t.Errorf("expected 7 frames from file, got %d", cfg.Frames)
	}
	if cfg.Scene.Kind != "chain" {
		t.Errorf("expected scene from args, got %q", cfg.Scene.Kind)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		preset string
		flag   string
		value  string
	}{
		{"bad preset format", "pile", "", ""},
		{"unknown preset", "pile/huge", "", ""},
		{"zero collision steps", "", "collision-steps", "0"},
		{"negative dt", "", "dt", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newTestCmd(t)
			preset = tt.preset
			if tt.flag != "" {
				if err := cmd.Flags().Set(tt.flag, tt.value); err != nil {
					t.Fatal(err)
				}
			}
			if _, err := loadConfig(cmd, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
	preset = ""
}

func TestLoadConfigInvalidWraps(t *testing.T) {
	cmd := newTestCmd(t)
	if err := cmd.Flags().Set("substeps", "0"); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(cmd, nil); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger(config.LogConfig{Level: "debug", Development: true}); err != nil {
		t.Errorf("expected logger, got %v", err)
	}
	if _, err := newLogger(config.LogConfig{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestOpenSession(t *testing.T) {
	cfg := config.GetPreset("chain", "short")
	cfg.Jobs.Threads = 0
	s, err := openSession(cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(s.scene.Bodies) != 8 {
		t.Errorf("expected 8 links, got %d", len(s.scene.Bodies))
	}
	if _, err := s.driver.Step(cfg.Step.Dt, 1, 1); err != nil {
		t.Errorf("step: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

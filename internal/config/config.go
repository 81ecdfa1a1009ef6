package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/jakecoffman/cp"
	"github.com/san-kum/rigidsim/internal/arena"
	"github.com/san-kum/rigidsim/internal/engine"
	"github.com/san-kum/rigidsim/internal/jobs"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt             = 1.0 / 60.0
	DefaultFrames         = 600
	DefaultCollisionSteps = 1
	DefaultSubSteps       = 1
	DefaultGravity        = -9.81
	DefaultSceneHeight    = 10.0
	DefaultLogLevel       = "info"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Physics      PhysicsConfig `yaml:"physics"`
	ScratchBytes int           `yaml:"scratch_bytes"`
	Jobs         JobsConfig    `yaml:"jobs"`
	Step         StepConfig    `yaml:"step"`
	Frames       int           `yaml:"frames"`
	Log          LogConfig     `yaml:"log"`
	Scene        SceneConfig   `yaml:"scene"`
}

type PhysicsConfig struct {
	MaxBodies             int     `yaml:"max_bodies"`
	NumBodyMutexes        int     `yaml:"num_body_mutexes"`
	MaxBodyPairs          int     `yaml:"max_body_pairs"`
	MaxContactConstraints int     `yaml:"max_contact_constraints"`
	Gravity               float64 `yaml:"gravity"`
	Iterations            uint    `yaml:"iterations"`
}

type JobsConfig struct {
	MaxJobs     int `yaml:"max_jobs"`
	MaxBarriers int `yaml:"max_barriers"`
	// Threads below zero selects one worker per CPU minus one.
	Threads int `yaml:"threads"`
}

type StepConfig struct {
	Dt                  float64 `yaml:"dt"`
	CollisionSteps      int     `yaml:"collision_steps"`
	IntegrationSubSteps int     `yaml:"integration_sub_steps"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type SceneConfig struct {
	Kind   string  `yaml:"kind"`
	Bodies int     `yaml:"bodies"`
	Seed   int64   `yaml:"seed"`
	Height float64 `yaml:"height"`
}

func DefaultConfig() *Config {
	return &Config{
		Physics: PhysicsConfig{
			MaxBodies:             engine.DefaultMaxBodies,
			MaxBodyPairs:          engine.DefaultMaxBodyPairs,
			MaxContactConstraints: engine.DefaultMaxContactConstraints,
			Gravity:               DefaultGravity,
			Iterations:            engine.DefaultIterations,
		},
		ScratchBytes: arena.DefaultCapacity,
		Jobs: JobsConfig{
			MaxJobs:     jobs.MaxPhysicsJobs,
			MaxBarriers: jobs.MaxPhysicsBarriers,
			Threads:     -1,
		},
		Step: StepConfig{
			Dt:                  DefaultDt,
			CollisionSteps:      DefaultCollisionSteps,
			IntegrationSubSteps: DefaultSubSteps,
		},
		Frames: DefaultFrames,
		Log:    LogConfig{Level: DefaultLogLevel},
		Scene:  SceneConfig{Kind: "empty", Height: DefaultSceneHeight},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks capacities and step parameters. A zero dt is allowed and
// makes every step a no-op.
func (c *Config) Validate() error {
	if err := c.EngineSettings().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if need := c.MinScratchBytes(); c.ScratchBytes < need {
		return fmt.Errorf("%w: scratch_bytes %d below the %d one step needs", ErrInvalid, c.ScratchBytes, need)
	}
	if c.Jobs.MaxJobs <= 0 || c.Jobs.MaxBarriers <= 0 {
		return fmt.Errorf("%w: jobs max_jobs=%d max_barriers=%d", ErrInvalid, c.Jobs.MaxJobs, c.Jobs.MaxBarriers)
	}
	if c.Step.CollisionSteps < 1 || c.Step.IntegrationSubSteps < 1 {
		return fmt.Errorf("%w: step counts %d/%d", ErrInvalid, c.Step.CollisionSteps, c.Step.IntegrationSubSteps)
	}
	if c.Step.Dt < 0 || math.IsNaN(c.Step.Dt) || math.IsInf(c.Step.Dt, 0) {
		return fmt.Errorf("%w: dt %g", ErrInvalid, c.Step.Dt)
	}
	if c.Frames < 0 {
		return fmt.Errorf("%w: frames %d", ErrInvalid, c.Frames)
	}
	if c.Scene.Bodies < 0 {
		return fmt.Errorf("%w: scene bodies %d", ErrInvalid, c.Scene.Bodies)
	}
	return nil
}

// MinScratchBytes is the smallest scratch arena that fits one step with the
// configured body pair limit and worker count.
func (c *Config) MinScratchBytes() int {
	workers := c.Jobs.Threads
	if workers < 0 {
		workers = jobs.DefaultThreads()
	}
	return engine.ScratchBytes(c.EngineSettings(), workers)
}

func (c *Config) EngineSettings() engine.Settings {
	return engine.Settings{
		MaxBodies:             c.Physics.MaxBodies,
		NumBodyMutexes:        c.Physics.NumBodyMutexes,
		MaxBodyPairs:          c.Physics.MaxBodyPairs,
		MaxContactConstraints: c.Physics.MaxContactConstraints,
		Gravity:               cp.Vector{X: 0, Y: c.Physics.Gravity},
		Iterations:            c.Physics.Iterations,
	}
}

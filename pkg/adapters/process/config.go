package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/inquiry/pkg/domain"
	"gopkg.in/yaml.v3"
)

// ProcessConfig binds a pipeline step to an external command.
type ProcessConfig struct {
	Step        string            `yaml:"step" json:"step"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
}

// ConfigFile represents the structure of executors.yaml
type ConfigFile struct {
	Executors []ProcessConfig `yaml:"executors" json:"executors"`
}

// LoadConfig reads a configuration file (YAML or JSON) and returns the commands keyed by step.
// A missing file yields an empty map.
func LoadConfig(path string) (map[domain.StepID]ProcessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[domain.StepID]ProcessConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read executors config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	out := make(map[domain.StepID]ProcessConfig)
	for _, c := range cfg.Executors {
		id, ok := domain.ParseStepID(c.Step)
		if !ok || id.IsHuman() || id.IsTerminal() {
			return nil, fmt.Errorf("%w: %q cannot run as a process", domain.ErrUnknownStep, c.Step)
		}
		if c.Command == "" {
			return nil, fmt.Errorf("executor for %s has no command", id)
		}
		out[id] = c
	}
	return out, nil
}

package workflow

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// fileDefinition mirrors Definition with string durations, which YAML
// cannot decode into time.Duration directly.
type fileDefinition struct {
	Name              string      `yaml:"name"`
	Description       string      `yaml:"description"`
	Category          string      `yaml:"category"`
	Tags              []string    `yaml:"tags"`
	EstimatedDuration string      `yaml:"estimated_duration"`
	Params            []ParamSpec `yaml:"params"`
	Results           []ParamSpec `yaml:"results"`
	Steps             []fileStep  `yaml:"steps"`
}

type fileStep struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Handler     string   `yaml:"handler"`
	Rollback    string   `yaml:"rollback"`
	DependsOn   []string `yaml:"depends_on"`
	Sequential  bool     `yaml:"sequential"`
	Optional    bool     `yaml:"optional"`
	Retryable   bool     `yaml:"retryable"`
	MaxAttempts int      `yaml:"max_attempts"`
	Timeout     string   `yaml:"timeout"`
}

// LoadDefinition parses a declarative YAML workflow definition. Steps
// reference handlers by name; the references are resolved against the
// HandlerRegistry when the definition is registered. The returned
// definition is not yet validated — pass it to Registry.Register.
func LoadDefinition(r io.Reader) (*Definition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read workflow definition: %w", err)
	}
	return ParseDefinition(data)
}

// ParseDefinition parses a YAML workflow definition from bytes.
func ParseDefinition(data []byte) (*Definition, error) {
	var fd fileDefinition
	if err := yaml.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("parse workflow definition: %w", err)
	}

	def := &Definition{
		Name:        fd.Name,
		Description: fd.Description,
		Category:    fd.Category,
		Tags:        fd.Tags,
		Params:      fd.Params,
		Results:     fd.Results,
	}

	if fd.EstimatedDuration != "" {
		d, err := time.ParseDuration(fd.EstimatedDuration)
		if err != nil {
			return nil, fmt.Errorf("workflow %q: invalid estimated_duration %q", fd.Name, fd.EstimatedDuration)
		}
		def.EstimatedDuration = d
	}

	def.Steps = make([]Step, 0, len(fd.Steps))
	for _, fs := range fd.Steps {
		step := Step{
			ID:           fs.ID,
			Name:         fs.Name,
			Description:  fs.Description,
			HandlerName:  fs.Handler,
			RollbackName: fs.Rollback,
			DependsOn:    fs.DependsOn,
			Sequential:   fs.Sequential,
			Optional:     fs.Optional,
			Retryable:    fs.Retryable,
			MaxAttempts:  fs.MaxAttempts,
		}
		if fs.Timeout != "" {
			d, err := time.ParseDuration(fs.Timeout)
			if err != nil {
				return nil, fmt.Errorf("workflow %q step %q: invalid timeout %q", fd.Name, fs.ID, fs.Timeout)
			}
			step.Timeout = d
		}
		def.Steps = append(def.Steps, step)
	}

	return def, nil
}

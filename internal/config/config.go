package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"rowriver/internal/domain"
	"rowriver/internal/etl"
)

// Config is the on-disk configuration of the river service.
type Config struct {
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // "json" | "text"
	} `yaml:"logging"`

	Storage struct {
		Path string `yaml:"path"` // sqlite file holding jobs, run logs and local documents
	} `yaml:"storage"`

	Metrics struct {
		Addr string `yaml:"addr"` // empty disables the /metrics endpoint
	} `yaml:"metrics"`

	Connections []domain.DatabaseConnection `yaml:"connections"`
	Rivers      []River                     `yaml:"rivers"`
}

// River declares one job in the config file.
type River struct {
	Name   string `yaml:"name"`
	Source struct {
		Type   string         `yaml:"type"`
		Config map[string]any `yaml:"config"`
	} `yaml:"source"`
	Sink struct {
		Type       string `yaml:"type"`       // "localdb" | "mongodb"
		Connection string `yaml:"connection"` // mongodb only
		Target     string `yaml:"target"`
	} `yaml:"sink"`
	Options etl.RiverOptions `yaml:"options"`
	Trigger struct {
		Type   string `yaml:"type"`   // "manual" | "schedule" | "file_watch"
		Config string `yaml:"config"` // cron expression or watch path
	} `yaml:"trigger"`
	Enabled *bool `yaml:"enabled"` // defaults to true
}

// LoadConfig reads path, expands ${ENV} references, applies defaults and validates.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document the same way LoadConfig does.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/rowriver.db"
	}
	for i := range c.Rivers {
		r := &c.Rivers[i]
		if r.Sink.Type == "" {
			r.Sink.Type = etl.SinkLocalDB
		}
		if r.Trigger.Type == "" {
			r.Trigger.Type = etl.TriggerManual
		}
	}
}

// Validate checks the cross references between rivers and connections.
func (c *Config) Validate() error {
	var errs []error

	seen := map[string]bool{}
	for _, conn := range c.Connections {
		switch {
		case conn.Name == "":
			errs = append(errs, errors.New("connection without name"))
			continue
		case seen[conn.Name]:
			errs = append(errs, fmt.Errorf("duplicate connection %q", conn.Name))
		case !conn.Driver.Valid():
			errs = append(errs, fmt.Errorf("connection %q: unsupported driver %q", conn.Name, conn.Driver))
		}
		seen[conn.Name] = true
	}

	rivers := map[string]bool{}
	for _, r := range c.Rivers {
		if r.Name == "" {
			errs = append(errs, errors.New("river without name"))
			continue
		}
		if rivers[r.Name] {
			errs = append(errs, fmt.Errorf("duplicate river %q", r.Name))
		}
		rivers[r.Name] = true

		if _, err := etl.GetSource(r.Source.Type); err != nil {
			errs = append(errs, fmt.Errorf("river %q: %w", r.Name, err))
		}
		if name, ok := r.Source.Config["connection"].(string); ok && !seen[name] {
			errs = append(errs, fmt.Errorf("river %q: unknown source connection %q", r.Name, name))
		}
		switch r.Sink.Type {
		case etl.SinkLocalDB:
		case etl.SinkMongoDB:
			if !seen[r.Sink.Connection] {
				errs = append(errs, fmt.Errorf("river %q: unknown sink connection %q", r.Name, r.Sink.Connection))
			}
		default:
			errs = append(errs, fmt.Errorf("river %q: unsupported sink %q", r.Name, r.Sink.Type))
		}
		if r.Sink.Target == "" {
			errs = append(errs, fmt.Errorf("river %q: sink target is required", r.Name))
		}
		if _, err := r.Options.SessionOptions(); err != nil {
			errs = append(errs, fmt.Errorf("river %q: %w", r.Name, err))
		}
		switch r.Trigger.Type {
		case etl.TriggerManual:
		case etl.TriggerSchedule, etl.TriggerFileWatch:
			if r.Trigger.Config == "" {
				errs = append(errs, fmt.Errorf("river %q: %s trigger needs a config", r.Name, r.Trigger.Type))
			}
		default:
			errs = append(errs, fmt.Errorf("river %q: unsupported trigger %q", r.Name, r.Trigger.Type))
		}
	}

	return errors.Join(errs...)
}

// Connection implements domain.ConnectionResolver over the declared connections.
func (c *Config) Connection(name string) (*domain.DatabaseConnection, error) {
	for i := range c.Connections {
		if c.Connections[i].Name == name {
			conn := c.Connections[i]
			return &conn, nil
		}
	}
	return nil, fmt.Errorf("connection %q is not declared", name)
}

// Jobs converts the declared rivers into job definitions.
func (c *Config) Jobs() []etl.Job {
	jobs := make([]etl.Job, 0, len(c.Rivers))
	for _, r := range c.Rivers {
		enabled := true
		if r.Enabled != nil {
			enabled = *r.Enabled
		}
		jobs = append(jobs, etl.Job{
			Name:           r.Name,
			SourceType:     r.Source.Type,
			SourceCfg:      etl.SourceConfig(r.Source.Config),
			SinkType:       r.Sink.Type,
			SinkConnection: r.Sink.Connection,
			Target:         r.Sink.Target,
			Options:        r.Options,
			TriggerType:    r.Trigger.Type,
			TriggerConfig:  r.Trigger.Config,
			Enabled:        enabled,
		})
	}
	return jobs
}

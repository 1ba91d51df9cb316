package model

import (
	"errors"
	"fmt"
	"io"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version int     `json:"version" yaml:"version"` // fixed 0 for now
	Server  Server  `json:"server" yaml:"server"`
	Weaver  Weaver  `json:"weaver" yaml:"weaver"`
	Pool    Pool    `json:"pool" yaml:"pool"`
	Janitor Janitor `json:"janitor" yaml:"janitor"`
	Service Service `json:"service" yaml:"service"`
}

// Server is the HTTP request boundary.
type Server struct {
	Addr         string   `json:"addr" yaml:"addr"`
	ReadTimeout  string   `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout string   `json:"write_timeout" yaml:"write_timeout"` // "0s" => none
	MaxBody      int64    `json:"max_body" yaml:"max_body"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins"`
}

// Weaver describes how the external tool is launched.
type Weaver struct {
	Launcher  string            `json:"launcher" yaml:"launcher"`     // executable, tool is its first argument
	ScriptExt string            `json:"script_ext" yaml:"script_ext"` // script is written as exec.<ext>
	TempDir   string            `json:"temp_dir" yaml:"temp_dir"`     // root of session directories
	Timeout   string            `json:"timeout" yaml:"timeout"`       // "0s" => no deadline
	KillGrace string            `json:"kill_grace" yaml:"kill_grace"`
	Env       map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

type Pool struct {
	Size int `json:"size" yaml:"size"`
}

// Janitor removes session directories orphaned by a terminated process.
type Janitor struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Schedule string `json:"schedule" yaml:"schedule"` // cron expression or @descriptor
	MaxAge   string `json:"max_age" yaml:"max_age"`
}

type Service struct {
	Verbose bool   `json:"verbose" yaml:"verbose"`
	Log     string `json:"log" yaml:"log"` // "stderr"|"stdout"|"discard"
	Metrics bool   `json:"metrics" yaml:"metrics"`
}

// DefaultConfig returns the configuration described by the schema defaults.
func DefaultConfig() Config {
	cfg, err := decode(cueCtx.CompileString("{}"))
	if err != nil {
		panic(fmt.Sprintf("schema defaults are not concrete: %v", err))
	}
	return cfg
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return Config{}, err
	}
	cfg, err := decode(cueCtx.BuildFile(yamlFile))
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(v cue.Value) (Config, error) {
	unified := schema.Unify(v)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}
	return out, nil
}

// Check verifies the constraints the schema cannot express. It must be called
// again after a Config has been modified by overrides.
func (c Config) Check() error {
	var errs []error
	if c.Version != 0 {
		errs = append(errs, fmt.Errorf("config version %d is not supported, expected 0", c.Version))
	}
	if c.Pool.Size < 1 {
		errs = append(errs, fmt.Errorf("pool.size must be positive, got %d", c.Pool.Size))
	}
	for key, value := range map[string]string{
		"server.read_timeout":  c.Server.ReadTimeout,
		"server.write_timeout": c.Server.WriteTimeout,
		"weaver.timeout":       c.Weaver.Timeout,
		"weaver.kill_grace":    c.Weaver.KillGrace,
		"janitor.max_age":      c.Janitor.MaxAge,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("parsing %s: %w", key, err))
			continue
		}
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", key))
		}
	}
	if c.Janitor.Enabled {
		if _, err := ParseCron(c.Janitor.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("parsing janitor.schedule: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s Server) ReadTimeoutDuration() time.Duration  { return duration(s.ReadTimeout) }
func (s Server) WriteTimeoutDuration() time.Duration { return duration(s.WriteTimeout) }
func (w Weaver) TimeoutDuration() time.Duration      { return duration(w.Timeout) }
func (w Weaver) KillGraceDuration() time.Duration    { return duration(w.KillGrace) }
func (j Janitor) MaxAgeDuration() time.Duration      { return duration(j.MaxAge) }

// ScriptName is the file name the transformation script is stored under.
func (w Weaver) ScriptName() string {
	return "exec." + w.ScriptExt
}

// EnvList renders Env as KEY=value pairs for os/exec.
func (w Weaver) EnvList() []string {
	env := make([]string, 0, len(w.Env))
	for k, v := range w.Env {
		env = append(env, k+"="+v)
	}
	return env
}

// duration parses values already accepted by Check.
func duration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

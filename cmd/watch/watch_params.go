package watch

import (
	"maps"
	"slices"
	"time"

	"github.com/Darkness4/debounce-go/hook"
)

// Params are the parameters of a gate.
type Params struct {
	Paths     []string          `yaml:"paths"`
	Recursive bool              `yaml:"recursive"`
	Ops       []string          `yaml:"ops"`
	MimeTypes []string          `yaml:"mimeTypes"`
	Ignore    []string          `yaml:"ignore"`
	Delay     time.Duration     `yaml:"delay"`
	MaxWait   time.Duration     `yaml:"maxWait"`
	Command   hook.Command      `yaml:"command"`
	Labels    map[string]string `yaml:"labels"`
}

// OptionalParams are the parameters of a gate overriding the defaults.
type OptionalParams struct {
	Paths     []string          `yaml:"paths,omitempty"`
	Recursive *bool             `yaml:"recursive,omitempty"`
	Ops       []string          `yaml:"ops,omitempty"`
	MimeTypes []string          `yaml:"mimeTypes,omitempty"`
	Ignore    []string          `yaml:"ignore,omitempty"`
	Delay     *time.Duration    `yaml:"delay,omitempty"`
	MaxWait   *time.Duration    `yaml:"maxWait,omitempty"`
	Command   *hook.Command     `yaml:"command,omitempty"`
	Labels    map[string]string `yaml:"labels,omitempty"`
}

// DefaultParams is the default set of parameters.
var DefaultParams = Params{
	Recursive: true,
	Ops:       []string{"create", "write", "remove", "rename"},
	Ignore:    []string{".*", "*~", "*.swp"},
	Delay:     time.Second,
	MaxWait:   10 * time.Second,
	Labels:    map[string]string{},
}

// Clone returns a deep copy of the parameters.
func (p *Params) Clone() *Params {
	c := *p
	c.Paths = slices.Clone(p.Paths)
	c.Ops = slices.Clone(p.Ops)
	c.MimeTypes = slices.Clone(p.MimeTypes)
	c.Ignore = slices.Clone(p.Ignore)
	c.Command.Args = slices.Clone(p.Command.Args)
	c.Command.Env = slices.Clone(p.Command.Env)
	c.Labels = maps.Clone(p.Labels)
	return &c
}

// Override applies the parameters set in override to params. Labels are
// merged.
func (override *OptionalParams) Override(params *Params) {
	if override.Paths != nil {
		params.Paths = override.Paths
	}
	if override.Recursive != nil {
		params.Recursive = *override.Recursive
	}
	if override.Ops != nil {
		params.Ops = override.Ops
	}
	if override.MimeTypes != nil {
		params.MimeTypes = override.MimeTypes
	}
	if override.Ignore != nil {
		params.Ignore = override.Ignore
	}
	if override.Delay != nil {
		params.Delay = *override.Delay
	}
	if override.MaxWait != nil {
		params.MaxWait = *override.MaxWait
	}
	if override.Command != nil {
		params.Command = *override.Command
	}
	if len(override.Labels) > 0 {
		if params.Labels == nil {
			params.Labels = make(map[string]string, len(override.Labels))
		}
		maps.Copy(params.Labels, override.Labels)
	}
}

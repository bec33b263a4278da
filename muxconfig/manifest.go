package muxconfig

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ErrInvalidManifest is returned for manifests that parse but cannot
// describe a valid route set.
var ErrInvalidManifest = errors.New("muxconfig: invalid manifest")

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// Manifest is the root of a route manifest.
type Manifest struct {
	Domains []DomainConfig `yaml:"domains"`
}

// DomainConfig describes one domain. An empty Host selects the default
// domain.
type DomainConfig struct {
	Host        string          `yaml:"host"`
	Middlewares []MiddlewareRef `yaml:"middlewares,omitempty"`
	Routes      []RouteConfig   `yaml:"routes,omitempty"`
	Groups      []GroupConfig   `yaml:"groups,omitempty"`
}

// GroupConfig describes routes sharing a path prefix and middleware.
type GroupConfig struct {
	Prefix      string          `yaml:"prefix"`
	Middlewares []MiddlewareRef `yaml:"middlewares,omitempty"`
	Routes      []RouteConfig   `yaml:"routes,omitempty"`
	Groups      []GroupConfig   `yaml:"groups,omitempty"`
}

// RouteConfig binds a named handler to a pattern for one or more methods.
type RouteConfig struct {
	Pattern     string          `yaml:"pattern"`
	Methods     []string        `yaml:"methods"`
	Handler     string          `yaml:"handler"`
	Middlewares []MiddlewareRef `yaml:"middlewares,omitempty"`
}

// MiddlewareRef names a catalog middleware and its priority. In YAML it is
// either a plain name or a mapping with name and priority keys.
type MiddlewareRef struct {
	Name     string `yaml:"name"`
	Priority int    `yaml:"priority,omitempty"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *MiddlewareRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		m.Name = value.Value
		m.Priority = 0
		return nil
	}

	type plain MiddlewareRef
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*m = MiddlewareRef(p)

	return nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	return Parse(data)
}

// LoadFromReader parses a manifest read from r.
func LoadFromReader(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data)
}

// Parse substitutes environment variables in data, decodes it and
// validates the result.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal([]byte(substituteEnvVars(string(data))), &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the structure of the manifest. Patterns, hosts and
// catalog names are checked when the manifest is applied.
func (m *Manifest) Validate() error {
	seen := make(map[string]bool, len(m.Domains))
	for i, d := range m.Domains {
		if seen[d.Host] {
			return fmt.Errorf("%w: domain %q listed twice", ErrInvalidManifest, d.Host)
		}
		seen[d.Host] = true

		where := fmt.Sprintf("domains[%d]", i)
		if err := validateRefs(where, d.Middlewares); err != nil {
			return err
		}
		if err := validateRoutes(where, d.Routes); err != nil {
			return err
		}
		if err := validateGroups(where, d.Groups); err != nil {
			return err
		}
	}
	return nil
}

func validateGroups(where string, groups []GroupConfig) error {
	for i, g := range groups {
		at := fmt.Sprintf("%s.groups[%d]", where, i)
		if g.Prefix == "" {
			return fmt.Errorf("%w: %s: empty prefix", ErrInvalidManifest, at)
		}
		if err := validateRefs(at, g.Middlewares); err != nil {
			return err
		}
		if err := validateRoutes(at, g.Routes); err != nil {
			return err
		}
		if err := validateGroups(at, g.Groups); err != nil {
			return err
		}
	}
	return nil
}

func validateRoutes(where string, routes []RouteConfig) error {
	for i, r := range routes {
		at := fmt.Sprintf("%s.routes[%d]", where, i)
		switch {
		case r.Pattern == "":
			return fmt.Errorf("%w: %s: empty pattern", ErrInvalidManifest, at)
		case len(r.Methods) == 0:
			return fmt.Errorf("%w: %s: no methods", ErrInvalidManifest, at)
		case r.Handler == "":
			return fmt.Errorf("%w: %s: no handler", ErrInvalidManifest, at)
		}
		if err := validateRefs(at, r.Middlewares); err != nil {
			return err
		}
	}
	return nil
}

func validateRefs(where string, refs []MiddlewareRef) error {
	for i, ref := range refs {
		if ref.Name == "" {
			return fmt.Errorf("%w: %s.middlewares[%d]: empty name", ErrInvalidManifest, where, i)
		}
	}
	return nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default}. Unset variables
// without a default become empty.
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		if value, ok := os.LookupEnv(sub[1]); ok {
			return value
		}
		return sub[2]
	})
}

package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ShellFile is the name of the environment file inside the cache root.
const ShellFile = "shell.yaml"

// ErrUnknownShell is returned by Exports for unsupported shells.
var ErrUnknownShell = errors.New("cache: unknown shell")

// Shell holds environment variables that installs want exported.
type Shell struct {
	EnvVars map[string]string `yaml:"env_vars"`
}

// Set records key=value, replacing any earlier value.
func (s *Shell) Set(key, value string) {
	if s.EnvVars == nil {
		s.EnvVars = make(map[string]string)
	}
	s.EnvVars[key] = value
}

// Exports renders the variables as statements for shell, sorted by key.
// Supported shells: sh, bash, zsh, fish, powershell (pwsh).
func (s *Shell) Exports(shell string) ([]string, error) {
	var format func(k, v string) string
	switch shell {
	case "sh", "bash", "zsh", "":
		format = func(k, v string) string { return "export " + k + "=" + posixQuote(v) }
	case "fish":
		format = func(k, v string) string { return "set -gx " + k + " " + posixQuote(v) }
	case "powershell", "pwsh":
		format = func(k, v string) string {
			return "$env:" + k + " = '" + strings.ReplaceAll(v, "'", "''") + "'"
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownShell, shell)
	}

	keys := make([]string, 0, len(s.EnvVars))
	for k := range s.EnvVars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, format(k, s.EnvVars[k]))
	}
	return lines, nil
}

// posixQuote leaves plain values bare and single-quotes everything else.
func posixQuote(v string) string {
	if v != "" && strings.IndexFunc(v, func(r rune) bool {
		return !(r == '/' || r == '.' || r == '-' || r == '_' || r == ':' || r == '+' || r == ',' || r == '=' ||
			('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9'))
	}) < 0 {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
}

// ReadShell loads the shell file. A missing file yields an empty Shell.
func (c *Cache) ReadShell() (*Shell, error) {
	data, err := os.ReadFile(c.Path(ShellFile))
	if errors.Is(err, fs.ErrNotExist) {
		return &Shell{EnvVars: map[string]string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read shell file: %w", err)
	}

	var s Shell
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse shell file: %w", err)
	}
	if s.EnvVars == nil {
		s.EnvVars = map[string]string{}
	}
	return &s, nil
}

// WriteShell replaces the shell file with s.
func (c *Cache) WriteShell(s *Shell) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode shell file: %w", err)
	}
	if err := os.WriteFile(c.Path(ShellFile), data, 0o644); err != nil {
		return fmt.Errorf("write shell file: %w", err)
	}
	return nil
}

// SetEnv reads the shell file, sets key and writes it back.
func (c *Cache) SetEnv(key, value string) error {
	s, err := c.ReadShell()
	if err != nil {
		return err
	}
	s.Set(key, value)
	return c.WriteShell(s)
}

// Package config loads the server configuration: defaults, the standard
// file search path, YAML unmarshalling and the fatal startup checks.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/papercut-news/go-papercut/internal/storage"
)

// Hierarchy configures one prefix-bound backend instance. A hierarchy
// without an explicit backend uses the global storage_backend module.
type Hierarchy struct {
	Backend     string `yaml:"backend"`
	MaildirPath string `yaml:"maildir_path"`
	ForwardHost string `yaml:"forward_host"`
	ServerType  string `yaml:"server_type"`
}

// Config is the merged server configuration. Field names follow the
// historical papercut.yaml keys.
type Config struct {
	MaxConnections int    `yaml:"max_connections"`
	LogFile        string `yaml:"log_file"`
	Hostname       string `yaml:"nntp_hostname"`
	Port           int    `yaml:"nntp_port"`
	ServerType     string `yaml:"server_type"`

	Auth        string `yaml:"nntp_auth"`
	AuthBackend string `yaml:"auth_backend"`
	AuthDBPath  string `yaml:"auth_db_path"`

	Cache       string `yaml:"nntp_cache"`
	CacheExpire int    `yaml:"nntp_cache_expire"`
	CachePath   string `yaml:"nntp_cache_path"`

	StorageBackend string `yaml:"storage_backend"`
	MaildirPath    string `yaml:"maildir_path"`
	ForwardHost    string `yaml:"forward_host"`

	WebListen      string `yaml:"web_listen"`
	ProfilerListen string `yaml:"profiler_listen"`

	Hierarchies map[string]Hierarchy `yaml:"hierarchies"`
}

// Default returns the built-in configuration every file is merged onto.
func Default() *Config {
	return &Config{
		MaxConnections: 20,
		LogFile:        "/var/log/papercut.log",
		Hostname:       "nntp.example.com",
		Port:           119,
		ServerType:     "read-write",
		Auth:           "no",
		AuthDBPath:     "$HOME/.papercut/users.db",
		Cache:          "no",
		CacheExpire:    3 * 60 * 60,
		CachePath:      "/var/cache/papercut",
		StorageBackend: "maildir",
		MaildirPath:    "$HOME/Maildir",
	}
}

// Load merges the defaults with the standard configuration files, or with
// the explicit path when one is given. Files later in the list override
// earlier ones; a missing explicit file is warned about and skipped so a
// bare install still starts with defaults.
func Load(explicit string) (*Config, error) {
	paths := searchPaths()
	if explicit != "" {
		paths = []string{explicit}
	}

	cfg := Default()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				if path == explicit {
					fmt.Fprintf(os.Stderr, "WARNING: configuration file %s: no such file or directory\n", path)
				}
				continue
			}
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.expandPaths()
	return cfg, nil
}

func searchPaths() []string {
	paths := []string{"/etc/papercut/papercut.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".papercut", "papercut.yaml"))
	}
	return paths
}

// ExpandPath interpolates environment variables and a leading ~ into a
// path value.
func ExpandPath(path string) string {
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}

func (c *Config) expandPaths() {
	c.LogFile = ExpandPath(c.LogFile)
	c.CachePath = ExpandPath(c.CachePath)
	c.MaildirPath = ExpandPath(c.MaildirPath)
	c.AuthDBPath = ExpandPath(c.AuthDBPath)
	for name, h := range c.Hierarchies {
		h.MaildirPath = ExpandPath(h.MaildirPath)
		c.Hierarchies[name] = h
	}
}

// Validate reports the fatal startup errors: a hierarchy squatting on the
// reserved global prefix, a configuration without any storage backend, and
// auth enabled without an auth backend.
func (c *Config) Validate() error {
	var bad []string
	for name := range c.Hierarchies {
		if strings.HasPrefix(name, storage.DefaultHierarchy) {
			bad = append(bad, name)
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return fmt.Errorf("illegal hierarchy name(s) %s (%s* is reserved for the global backend)",
			strings.Join(bad, ", "), storage.DefaultHierarchy)
	}

	if c.StorageBackend == "" {
		found := false
		for _, h := range c.Hierarchies {
			if h.Backend != "" {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("no global or hierarchy specific storage backends found")
		}
	}

	if c.AuthEnabled() && c.AuthBackend == "" {
		return fmt.Errorf("nntp_auth is enabled but auth_backend is not configured")
	}
	return nil
}

// BackendName resolves the backend module for a hierarchy, falling back to
// the global storage backend when the hierarchy does not name one.
func (c *Config) BackendName(h Hierarchy) string {
	if h.Backend != "" {
		return h.Backend
	}
	return c.StorageBackend
}

// ReadOnly reports whether the server refuses POST.
func (c *Config) ReadOnly() bool { return c.ServerType == "read-only" }

// AuthEnabled reports whether clients must authenticate.
func (c *Config) AuthEnabled() bool { return c.Auth == "yes" }

// CacheEnabled reports whether backend results are memoized.
func (c *Config) CacheEnabled() bool { return c.Cache == "yes" }

// CacheTTL returns the result cache expiry.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheExpire) * time.Second
}

// Addr returns the NNTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Hostname, strconv.Itoa(c.Port))
}

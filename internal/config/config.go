package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/rkvm-client/internal/ipc"
)

// DefaultPath is read when RKVM_CONFIG_PATH is unset.
const DefaultPath = "/etc/rkvm/client.yaml"

const defaultReconnectDelay = 5 * time.Second

// Config is the client configuration file.
type Config struct {
	// Server is the host:port of the rkvm server.
	Server string `yaml:"server"`
	// Certificate is a PEM file holding the CA that signed the server
	// certificate.
	Certificate  string `yaml:"certificate"`
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"password_file"`

	ActiveSocket   string        `yaml:"active_socket"`
	MetricsAddress string        `yaml:"metrics_address"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	Debug          bool          `yaml:"debug"`
}

// Path returns the resolved configuration file path.
func Path() string {
	if custom := strings.TrimSpace(os.Getenv("RKVM_CONFIG_PATH")); custom != "" {
		return custom
	}
	return DefaultPath
}

// Default returns a configuration with every optional field populated.
func Default() *Config {
	return &Config{
		ActiveSocket:   ipc.DefaultSocketPath,
		ReconnectDelay: defaultReconnectDelay,
	}
}

// Load reads the YAML file at path, applies environment overrides and
// resolves the password. The result is not validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse is Load for an in-memory document.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.resolvePassword(); err != nil {
		return nil, err
	}
	if cfg.ActiveSocket == "" {
		cfg.ActiveSocket = ipc.DefaultSocketPath
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("RKVM_SERVER")); v != "" {
		c.Server = v
	}
	if v := os.Getenv("RKVM_PASSWORD"); v != "" {
		c.Password = v
		c.PasswordFile = ""
	}
	if v := strings.TrimSpace(os.Getenv("RKVM_ACTIVE_SOCKET")); v != "" {
		c.ActiveSocket = v
	}
}

// resolvePassword fills Password from PasswordFile, falling back to the
// password embedded at build time.
func (c *Config) resolvePassword() error {
	if c.Password == "" && c.PasswordFile != "" {
		raw, err := os.ReadFile(c.PasswordFile)
		if err != nil {
			return fmt.Errorf("read password file: %w", err)
		}
		c.Password = strings.TrimRight(string(raw), "\r\n")
	}
	if c.Password == "" {
		c.Password = CompiledPassword
	}
	return nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	if _, _, err := c.Target(); err != nil {
		errs = append(errs, err)
	}
	if c.Certificate == "" {
		errs = append(errs, errors.New("certificate is required"))
	}
	if c.Password == "" {
		errs = append(errs, errors.New("password is required (password, password_file or RKVM_PASSWORD)"))
	}
	return errors.Join(errs...)
}

// Target splits Server into host and port.
func (c *Config) Target() (string, uint16, error) {
	if c.Server == "" {
		return "", 0, errors.New("server is required")
	}
	host, portText, err := net.SplitHostPort(c.Server)
	if err != nil {
		return "", 0, fmt.Errorf("server %q: %w", c.Server, err)
	}
	if host == "" {
		return "", 0, fmt.Errorf("server %q: missing host", c.Server)
	}
	port, err := strconv.ParseUint(portText, 10, 16)
	if err != nil || port == 0 {
		return "", 0, fmt.Errorf("server %q: invalid port %q", c.Server, portText)
	}
	return host, uint16(port), nil
}

// ActiveEndpoint returns the socket the broadcast service listens on.
func (c *Config) ActiveEndpoint() ipc.Endpoint {
	return ipc.UnixEndpoint(c.ActiveSocket)
}

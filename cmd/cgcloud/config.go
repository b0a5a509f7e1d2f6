package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/fnothaft/cgcloud/internal/box"
	"github.com/fnothaft/cgcloud/internal/cluster"
	"github.com/fnothaft/cgcloud/internal/image"
)

// duration lets TOML files spell durations as "30s" or "10m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

type sshConfig struct {
	Port           int      `toml:"port"`
	ConnectTimeout duration `toml:"connect_timeout"`
	Attempts       int      `toml:"attempts"`
	RetryDelay     duration `toml:"retry_delay"`
}

type readinessConfig struct {
	Interval duration `toml:"interval"`
	Timeout  duration `toml:"timeout"`
}

type catalogConfig struct {
	UbuntuBaseURL string `toml:"ubuntu_base_url"`
}

type clusterConfig struct {
	InstallDir string `toml:"install_dir"`
	MasterRole string `toml:"master_role"`
	SlaveRole  string `toml:"slave_role"`
}

type boxConfig struct {
	Family     string   `toml:"family"`
	Release    string   `toml:"release"`
	Generation int      `toml:"generation"`
	Packages   []string `toml:"packages"`
}

type cgcloudConfig struct {
	// empty means the region of the instance cgcloud runs on
	Region string `toml:"region"`
	// AWS shared credentials file, the default credential chain if empty
	Credentials    string   `toml:"credentials"`
	KeyName        string   `toml:"key_name"`
	PrivateKey     string   `toml:"private_key"`
	InstanceType   string   `toml:"instance_type"`
	SecurityGroups []string `toml:"security_groups"`
	LogLevel       string   `toml:"log_level"`
	Journal        bool     `toml:"journal"`

	SSH       sshConfig            `toml:"ssh"`
	Readiness readinessConfig      `toml:"readiness"`
	Catalog   catalogConfig        `toml:"catalog"`
	Cluster   clusterConfig        `toml:"cluster"`
	Boxes     map[string]boxConfig `toml:"boxes"`
}

func defaultConfig() cgcloudConfig {
	return cgcloudConfig{
		InstanceType:   "m3.large",
		SecurityGroups: []string{"cgcloud"},
		LogLevel:       "info",
		SSH: sshConfig{
			Port:           22,
			ConnectTimeout: duration{10 * time.Second},
			Attempts:       3,
			RetryDelay:     duration{5 * time.Second},
		},
		Readiness: readinessConfig{
			Interval: duration{5 * time.Second},
			Timeout:  duration{10 * time.Minute},
		},
		Catalog: catalogConfig{
			UbuntuBaseURL: image.DefaultUbuntuBaseURL,
		},
		Cluster: clusterConfig{
			InstallDir: cluster.DefaultInstallDir,
			MasterRole: "spark-master",
			SlaveRole:  "spark-slave",
		},
		Boxes: map[string]boxConfig{},
	}
}

func parseConfig(file string) (*cgcloudConfig, error) {
	config := defaultConfig()

	_, err := toml.DecodeFile(file, &config)
	if err != nil {
		// A non-existing config isn't an error, use defaults in this case.
		if !os.IsNotExist(err) {
			return nil, err
		}
		logrus.Info("Configuration file not found, using defaults")
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *cgcloudConfig) validate() error {
	if c.SSH.Port <= 0 || c.SSH.Port > 65535 {
		return fmt.Errorf("invalid ssh port: %d", c.SSH.Port)
	}
	if c.SSH.Attempts <= 0 {
		return fmt.Errorf("ssh attempts must be positive, got %d", c.SSH.Attempts)
	}
	if c.Readiness.Interval.Duration <= 0 {
		return fmt.Errorf("readiness interval must be positive, got %s", c.Readiness.Interval)
	}
	if c.Readiness.Timeout.Duration <= 0 {
		return fmt.Errorf("readiness timeout must be positive, got %s", c.Readiness.Timeout)
	}
	for _, name := range c.roleNames() {
		if _, err := c.role(name); err != nil {
			return err
		}
	}
	return nil
}

func (c *cgcloudConfig) roleNames() []string {
	names := make([]string, 0, len(c.Boxes))
	for name := range c.Boxes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// role builds the role definition of the [boxes.<name>] section.
func (c *cgcloudConfig) role(name string) (box.Role, error) {
	bc, ok := c.Boxes[name]
	if !ok {
		return box.Role{}, fmt.Errorf("unknown role %q, configure it in a [boxes.%s] section", name, name)
	}
	family, ok := image.ParseFamily(bc.Family)
	if !ok {
		return box.Role{}, fmt.Errorf("role %s: unsupported family %q", name, bc.Family)
	}
	role := box.Role{
		Name:       name,
		Family:     family,
		Release:    bc.Release,
		Generation: bc.Generation,
		Region:     c.Region,
		Packages:   bc.Packages,
	}
	return role, role.Validate()
}

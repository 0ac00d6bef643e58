package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const DefaultConfigFile = "/etc/pve-cslb.yml"

// flagBindings maps CLI flag names onto configuration keys. Only scalar
// options are bound through viper; the exclusion lists accumulate across
// layers and are merged explicitly in Load.
var flagBindings = map[string]string{
	"config-file":           "config_file",
	"dry-run":               "dry_run",
	"verbose":               "verbose",
	"quiet":                 "quiet",
	"no-color":              "no_color",
	"proxmox-scheme":        "proxmox_scheme",
	"proxmox-node":          "proxmox_node",
	"proxmox-port":          "proxmox_port",
	"proxmox-user":          "proxmox_user",
	"proxmox-pass":          "proxmox_pass",
	"proxmox-no-verify-ssl": "proxmox_no_verify_ssl",
	"proxmox-ssh-key-file":  "proxmox_ssh_key_file",
	"tolerance":             "tolerance",
	"percent-cpu":           "percent_cpu",
	"percent-mem":           "percent_mem",
	"max-migrations":        "max_migrations",
}

// Load merges configuration layers with the precedence
// CLI > environment > config file > defaults and returns the result.
func Load(v *viper.Viper, flags *pflag.FlagSet) (*Config, error) {
	log := logrus.WithField("context", "config")

	v.SetDefault("config_file", DefaultConfigFile)
	v.SetDefault("proxmox_scheme", "https")
	v.SetDefault("proxmox_node", "localhost")
	v.SetDefault("proxmox_port", 8006)
	v.SetDefault("proxmox_user", "root@pam")
	v.SetDefault("proxmox_ssh_key_file", defaultSSHKeyFile())
	v.SetDefault("tolerance", 0.2)
	v.SetDefault("percent_cpu", 0.4)
	v.SetDefault("percent_mem", 0.6)
	v.SetDefault("max_migrations", 5)

	for name, key := range flagBindings {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	v.SetEnvPrefix("CSLB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfgFile := v.GetString("config_file")
	fileV := viper.New()
	fileV.SetConfigFile(cfgFile)
	fileV.SetConfigType("yaml")
	if err := fileV.ReadInConfig(); err != nil {
		// A missing default config file is fine; a file the operator asked
		// for and we cannot read is not.
		if cfgFile != DefaultConfigFile {
			return nil, fmt.Errorf("cannot read config file %s: %w", cfgFile, err)
		}
		log.Debugf("No config file at %s", cfgFile)
	} else {
		log.Debugf("Loaded config from %s", fileV.ConfigFileUsed())
		if err := v.MergeConfigMap(fileV.AllSettings()); err != nil {
			return nil, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("cannot parse configuration: %w", err)
	}
	c.ConfigFile = cfgFile

	c.ExcludeNodes = mergeList(
		fileV.GetStringSlice("exclude_nodes"),
		os.Getenv("CSLB_EXCLUDE_NODES"),
		stringArray(flags, "exclude-node"),
		os.Getenv("CSLB_INCLUDE_NODES"),
		stringArray(flags, "include-node"),
	)
	c.ExcludeVMIDs = mergeList(
		fileV.GetStringSlice("exclude_vmids"),
		os.Getenv("CSLB_EXCLUDE_VMIDS"),
		stringArray(flags, "exclude-vmid"),
		os.Getenv("CSLB_INCLUDE_VMIDS"),
		stringArray(flags, "include-vmid"),
	)
	c.ExcludeTypes = mergeList(
		fileV.GetStringSlice("exclude_types"),
		os.Getenv("CSLB_EXCLUDE_TYPES"),
		stringArray(flags, "exclude-type"),
		os.Getenv("CSLB_INCLUDE_TYPES"),
		stringArray(flags, "include-type"),
	)

	cpu, mem := Normalize(c.PercentCPU, c.PercentMem)
	if cpu != c.PercentCPU || mem != c.PercentMem {
		log.Debugf("Resource weights rebalanced: percent_cpu %g -> %g, percent_mem %g -> %g",
			c.PercentCPU, cpu, c.PercentMem, mem)
	}
	c.PercentCPU = cpu
	c.PercentMem = mem

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Normalize re-derives the CPU/memory weighting proportions so they sum to
// exactly 1.0. If the sum exceeds 1 the larger value is clamped to at most 1
// and the other becomes the remainder; if the sum falls short the smaller
// value is raised to the remainder; equal values reset to 0.5/0.5.
func Normalize(cpu float64, mem float64) (float64, float64) {
	sum := cpu + mem
	if sum == 1 {
		return cpu, mem
	}
	if cpu == mem {
		return 0.5, 0.5
	}
	if sum > 1 {
		if cpu > mem {
			if cpu > 1 {
				cpu = 1
			}
			return cpu, 1 - cpu
		}
		if mem > 1 {
			mem = 1
		}
		return 1 - mem, mem
	}
	if cpu > mem {
		return cpu, 1 - cpu
	}
	return 1 - mem, mem
}

func (c *Config) validate() error {
	switch c.ProxmoxScheme {
	case "https", "ssh", "local":
	default:
		return fmt.Errorf("invalid proxmox_scheme %q (must be https, ssh, or local)", c.ProxmoxScheme)
	}
	if c.Tolerance < 0 || c.Tolerance > 1 {
		return fmt.Errorf("tolerance %g out of range 0..1", c.Tolerance)
	}
	if c.MaxMigrations < 1 {
		return fmt.Errorf("max_migrations must be a positive integer, got %d", c.MaxMigrations)
	}
	for _, t := range c.ExcludeTypes {
		if t != "qemu" && t != "lxc" {
			return fmt.Errorf("invalid exclude_types entry %q (must be 'lxc' or 'qemu')", t)
		}
	}
	return nil
}

func defaultSSHKeyFile() string {
	usr, err := user.Current()
	if err != nil {
		return ""
	}
	return filepath.Join(usr.HomeDir, ".ssh", "id_rsa")
}

package config

// WeightParameters drive the weight model and the migration planner.
// PercentCPU and PercentMem must always sum to 1.0; Normalize enforces it.
type WeightParameters struct {
	PercentCPU    float64 `mapstructure:"percent_cpu"`
	PercentMem    float64 `mapstructure:"percent_mem"`
	Tolerance     float64 `mapstructure:"tolerance"`
	MaxMigrations int     `mapstructure:"max_migrations"`
}

type Config struct {
	ConfigFile string `mapstructure:"config_file"`

	DryRun  bool `mapstructure:"dry_run"`
	Verbose bool `mapstructure:"verbose"`
	Quiet   bool `mapstructure:"quiet"`
	NoColor bool `mapstructure:"no_color"`

	ProxmoxScheme      string `mapstructure:"proxmox_scheme"`
	ProxmoxNode        string `mapstructure:"proxmox_node"`
	ProxmoxPort        int    `mapstructure:"proxmox_port"`
	ProxmoxUser        string `mapstructure:"proxmox_user"`
	ProxmoxPass        string `mapstructure:"proxmox_pass"`
	ProxmoxNoVerifySSL bool   `mapstructure:"proxmox_no_verify_ssl"`
	ProxmoxSSHKeyFile  string `mapstructure:"proxmox_ssh_key_file"`

	WeightParameters `mapstructure:",squash"`

	ExcludeNodes []string `mapstructure:"exclude_nodes"`
	ExcludeVMIDs []string `mapstructure:"exclude_vmids"`
	ExcludeTypes []string `mapstructure:"exclude_types"`
}

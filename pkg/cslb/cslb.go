package cslb

import (
	"github.com/padthaitofuhot/pve-cslb/pkg/balancer"
	"github.com/padthaitofuhot/pve-cslb/pkg/config"
	"github.com/padthaitofuhot/pve-cslb/pkg/migrate"
	"github.com/sirupsen/logrus"
)

func New(version string, log *logrus.Entry, conf *config.Config) *CSLB {
	return &CSLB{
		Ver:    version,
		conf:   conf,
		log:    log,
		stopCh: make(chan struct{}),
	}
}

func (o *CSLB) Version() string {
	return o.Ver
}

func (o *CSLB) Log() *logrus.Entry {
	return o.log
}

func (o *CSLB) Config() *config.Config {
	return o.conf
}

func (o *CSLB) Stop() {
	o.Log().Info("shutting things down")
	close(o.stopCh)
}

// Run performs one rebalancing decision pass and returns the process exit
// code. Per-migration failures are reported but never escalate; only a
// telemetry fetch failure aborts the pass, because planning against a
// partial snapshot is worse than doing nothing.
func (o *CSLB) Run() int {
	o.dumpConfig()

	b := balancer.New(o)
	snap, err := b.Collect(o.Proxmox)
	if err != nil {
		o.Log().Errorf("Telemetry fetch failed, aborting pass: %s", err)
		return 1
	}
	if o.conf.Verbose {
		o.reportNetworkUsage(snap)
	}

	candidates := b.Classify(snap)
	proposals := b.Plan(snap, candidates)
	if len(proposals) < 1 {
		o.Log().Info("No migration candidate(s) found.")
		return 0
	}

	if o.conf.DryRun {
		for _, spec := range proposals {
			o.Log().Infof("Dry run: would migrate workload '%s' (%s/%d) from node %s to node %s",
				spec.Name, spec.Kind, spec.VMID, spec.Source, spec.Destination)
		}
		o.Log().Info("Dry run; no migration(s) started.")
		return 0
	}

	executor := migrate.New(o, o.Proxmox)
	results := executor.Run(proposals)

	submitted := 0
	failed := 0
	for _, result := range results {
		if result.Err != nil {
			failed++
			continue
		}
		submitted++
		if o.conf.Verbose && result.Job != nil && result.Job.Raw != "" {
			o.reportTaskLog(result.Spec.Source, result.Job.Raw)
		}
	}
	o.Log().Infof("Migration job(s) submitted: %d ok, %d failed", submitted, failed)
	return 0
}

func (o *CSLB) dumpConfig() {
	c := o.conf
	o.Log().Debugf("config_file: %s", c.ConfigFile)
	o.Log().Debugf("proxmox_scheme: %s", c.ProxmoxScheme)
	o.Log().Debugf("proxmox_node: %s", c.ProxmoxNode)
	o.Log().Debugf("proxmox_port: %d", c.ProxmoxPort)
	o.Log().Debugf("proxmox_user: %s", c.ProxmoxUser)
	o.Log().Debugf("proxmox_pass: ********")
	o.Log().Debugf("proxmox_no_verify_ssl: %t", c.ProxmoxNoVerifySSL)
	o.Log().Debugf("proxmox_ssh_key_file: %s", c.ProxmoxSSHKeyFile)
	o.Log().Debugf("tolerance: %g", c.Tolerance)
	o.Log().Debugf("percent_cpu: %g", c.PercentCPU)
	o.Log().Debugf("percent_mem: %g", c.PercentMem)
	o.Log().Debugf("max_migrations: %d", c.MaxMigrations)
	o.Log().Debugf("exclude_nodes: %v", c.ExcludeNodes)
	o.Log().Debugf("exclude_vmids: %v", c.ExcludeVMIDs)
	o.Log().Debugf("exclude_types: %v", c.ExcludeTypes)
	o.Log().Debugf("dry_run: %t", c.DryRun)
}

func (o *CSLB) reportNetworkUsage(snap *balancer.Snapshot) {
	for _, name := range snap.Order {
		in, out, err := o.Proxmox.NetworkUsage(name)
		if err != nil {
			o.Log().Debugf("Node %s: netstat unavailable: %s", name, err)
			continue
		}
		o.Log().Debugf("Node %s: network usage: %d bytes in, %d bytes out", name, in, out)
	}
}

func (o *CSLB) reportTaskLog(node string, upid string) {
	lines, err := o.Proxmox.TaskLog(node, upid)
	if err != nil {
		o.Log().Debugf("Task log for %s unavailable: %s", upid, err)
		return
	}
	for _, line := range lines {
		o.Log().Debugf("Task %s: %s", upid, line.T)
	}
}

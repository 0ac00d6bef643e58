package migrate

import (
	"github.com/padthaitofuhot/pve-cslb/pkg/balancer"
	cslb "github.com/padthaitofuhot/pve-cslb/pkg/cslb_const"
	"github.com/padthaitofuhot/pve-cslb/pkg/proxmox"
)

type Executor struct {
	cslb cslb.CSLB
	pve  ControlPlane
}

// ControlPlane is the migration surface of the cluster API.
// *proxmox.Client satisfies it.
type ControlPlane interface {
	MigrateQemu(node string, vmid int, target string, online bool) (string, error)
	MigrateLxc(node string, vmid int, target string, online bool) (string, error)
}

// Result is the tagged outcome of one submission: either Job carries the
// control plane's task handle, or Err holds a recoverable failure
// (*proxmox.ResourceError for a locked workload, anything else a transport
// failure).
type Result struct {
	Spec balancer.MigrationSpec
	Job  *proxmox.UPID
	Err  error
}

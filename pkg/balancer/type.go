package balancer

import (
	cslb "github.com/padthaitofuhot/pve-cslb/pkg/cslb_const"
	"github.com/padthaitofuhot/pve-cslb/pkg/proxmox"
	"github.com/sirupsen/logrus"
)

type Balancer struct {
	cslb cslb.CSLB

	log *logrus.Entry
}

// Provider supplies per-node and per-workload telemetry. *proxmox.Client
// satisfies it.
type Provider interface {
	Nodes() ([]proxmox.Node, error)
	NodeStatus(node string) (*proxmox.NodeStatus, error)
	Qemu(node string) ([]proxmox.Workload, error)
	Lxc(node string) ([]proxmox.Workload, error)
}

// Kind names a workload type with the value the control plane speaks.
type Kind string

const (
	KindVM        Kind = "qemu"
	KindContainer Kind = "lxc"
)

type WorkloadState struct {
	VMID    int
	Name    string
	Kind    Kind
	Weight  int
	MemUsed float64
	CPUUsed float64
}

type NodeState struct {
	Name    string
	Weight  int
	MemFree int64
	CPUFree float64

	// Workloads keeps the control plane's enumeration order so tie-breaks
	// stay deterministic.
	Workloads []*WorkloadState
}

// Snapshot is the cluster state for one pass. It is built once, never
// mutated afterwards, and discarded when the planner is done.
type Snapshot struct {
	Order []string
	Nodes map[string]*NodeState
}

type Candidates struct {
	Sources      []string
	Destinations []string
}

// MigrationSpec is one migration intent: move the named workload from
// Source to Destination. Immutable once emitted.
type MigrationSpec struct {
	Source      string
	Destination string
	Name        string
	VMID        int
	Kind        Kind
}

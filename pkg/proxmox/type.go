package proxmox

import (
	"fmt"
	"net/url"

	cslb "github.com/padthaitofuhot/pve-cslb/pkg/cslb_const"
	"github.com/sirupsen/logrus"
)

type Client struct {
	cslb    cslb.CSLB
	backend backend

	log *logrus.Entry
}

// backend abstracts the three connection schemes (https, ssh, local).
// get and post return the API payload with the {"data": ...} envelope
// already stripped.
type backend interface {
	get(path string) ([]byte, error)
	post(path string, form url.Values) ([]byte, error)
}

type Node struct {
	Node   string `json:"node"`
	Status string `json:"status"`
}

// NodeStatus is the /nodes/<node>/status payload. The API reports several
// numerics as JSON strings (cpuinfo.mhz, loadavg), hence the Float type.
type NodeStatus struct {
	CPUInfo CPUInfo `json:"cpuinfo"`
	LoadAvg []Float `json:"loadavg"`
	Memory  Memory  `json:"memory"`
	KSM     KSM     `json:"ksm"`
}

type CPUInfo struct {
	MHz   Float `json:"mhz"`
	Cores Int   `json:"cores"`
}

type Memory struct {
	Total int64 `json:"total"`
	Used  int64 `json:"used"`
	Free  int64 `json:"free"`
}

type KSM struct {
	Shared int64 `json:"shared"`
}

// Workload is one entry of /nodes/<node>/qemu or /nodes/<node>/lxc.
// CPU is the current load fraction, CPUs the configured core count.
type Workload struct {
	VMID   Int    `json:"vmid"`
	Name   string `json:"name"`
	Status string `json:"status"`
	CPUs   Float  `json:"cpus"`
	CPU    Float  `json:"cpu"`
	Mem    int64  `json:"mem"`
	MaxMem int64  `json:"maxmem"`
}

type TaskLogLine struct {
	N int    `json:"n"`
	T string `json:"t"`
}

type NetstatEntry struct {
	In  Int `json:"in"`
	Out Int `json:"out"`
}

// UPID is a decoded Proxmox task identifier
// (UPID:node:pid:pstart:starttime:type:id:user:).
type UPID struct {
	Raw       string
	Node      string
	PID       int
	PStart    int
	StartTime int64
	Type      string
	ID        string
	User      string
}

// ResourceError is an error returned by the control plane itself, for
// example when a migration target rejects the job because the workload is
// locked. These are recoverable: the pass continues with the next spec.
type ResourceError struct {
	Status int
	Reason string
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("control plane rejected request (%d): %s", e.Status, e.Reason)
}

package migrate

import (
	"errors"
	"fmt"

	"github.com/padthaitofuhot/pve-cslb/pkg/balancer"
	cslb "github.com/padthaitofuhot/pve-cslb/pkg/cslb_const"
	"github.com/padthaitofuhot/pve-cslb/pkg/proxmox"
)

func New(c cslb.CSLB, pve ControlPlane) *Executor {
	m := &Executor{
		cslb: c,
		pve:  pve,
	}
	return m
}

// Run submits the migration specs strictly one after another. A rejected or
// failed submission is logged and the batch continues; nothing here is fatal
// and nothing is retried — the next scheduled pass is the retry mechanism.
func (m *Executor) Run(specs []balancer.MigrationSpec) []Result {
	results := make([]Result, 0, len(specs))
	for _, spec := range specs {
		result := m.Execute(spec)
		if result.Err != nil {
			var rejected *proxmox.ResourceError
			if errors.As(result.Err, &rejected) {
				m.Log().Errorf("Migration failed, %s is locked: %s", spec.Kind, rejected)
			} else {
				m.Log().Errorf("Migration failed, connection error: %s", result.Err)
			}
		} else {
			m.Log().Debugf("Migration UPID: %s", result.Job.Raw)
		}
		results = append(results, result)
	}
	return results
}

// Execute submits one migration. Containers move offline, VMs move live;
// those liveness flags are fixed policy. The call returns once the control
// plane has accepted the job — completion is not tracked.
func (m *Executor) Execute(spec balancer.MigrationSpec) Result {
	m.Log().Infof("Migrating workload '%s' (%s/%d) from node %s to node %s",
		spec.Name, spec.Kind, spec.VMID, spec.Source, spec.Destination)

	var upid string
	var err error
	switch spec.Kind {
	case balancer.KindContainer:
		upid, err = m.pve.MigrateLxc(spec.Source, spec.VMID, spec.Destination, false)
	case balancer.KindVM:
		upid, err = m.pve.MigrateQemu(spec.Source, spec.VMID, spec.Destination, true)
	default:
		err = fmt.Errorf("unknown workload kind: %s", spec.Kind)
	}
	if err != nil {
		return Result{Spec: spec, Err: err}
	}

	job, err := proxmox.ParseUPID(upid)
	if err != nil {
		m.Log().Warnf("Control plane returned an undecodable job id: %s", err)
		job = &proxmox.UPID{Raw: upid}
	}
	return Result{Spec: spec, Job: job}
}

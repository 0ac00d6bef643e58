package balancer

import (
	"sort"
	"strconv"

	cslb "github.com/padthaitofuhot/pve-cslb/pkg/cslb_const"
	"github.com/padthaitofuhot/pve-cslb/pkg/proxmox"
	"github.com/padthaitofuhot/pve-cslb/pkg/weights"
)

func New(c cslb.CSLB) *Balancer {
	b := &Balancer{
		cslb: c,
	}
	return b
}

// Collect fetches telemetry for every non-excluded node and its running,
// non-excluded workloads, and scores them. Any fetch error aborts the pass:
// the analyzer must never plan against a partial snapshot.
func (b *Balancer) Collect(pve Provider) (*Snapshot, error) {
	conf := b.cslb.Config()
	snap := &Snapshot{
		Nodes: make(map[string]*NodeState),
	}

	nodes, err := pve.Nodes()
	if err != nil {
		return nil, err
	}

	for _, node := range nodes {
		name := node.Node
		if containsString(conf.ExcludeNodes, name) {
			b.Log().Debugf("Node %s: ignoring per configuration", name)
			continue
		}

		status, err := pve.NodeStatus(name)
		if err != nil {
			return nil, err
		}
		weight, memFree, cpuFree := weights.Node(name, status, conf.WeightParameters)
		state := &NodeState{
			Name:    name,
			Weight:  weight,
			MemFree: memFree,
			CPUFree: cpuFree,
		}

		for _, kind := range []Kind{KindVM, KindContainer} {
			if containsString(conf.ExcludeTypes, string(kind)) {
				b.Log().Debugf("Ignoring %s workloads per configuration", kind)
				continue
			}
			var workloads []proxmox.Workload
			if kind == KindVM {
				workloads, err = pve.Qemu(name)
			} else {
				workloads, err = pve.Lxc(name)
			}
			if err != nil {
				return nil, err
			}
			for i := range workloads {
				wl := &workloads[i]
				if wl.Status != "running" {
					continue
				}
				vmid := int(wl.VMID)
				if containsString(conf.ExcludeVMIDs, strconv.Itoa(vmid)) {
					b.Log().Debugf("Ignoring VMID %d per configuration", vmid)
					continue
				}
				w, memUsed, cpuUsed := weights.Workload(name, wl, status, conf.WeightParameters)
				state.Workloads = append(state.Workloads, &WorkloadState{
					VMID:    vmid,
					Name:    wl.Name,
					Kind:    kind,
					Weight:  w,
					MemUsed: memUsed,
					CPUUsed: cpuUsed,
				})
			}
		}

		snap.Order = append(snap.Order, name)
		snap.Nodes[name] = state
	}

	return snap, nil
}

// Classify runs the balance test and splits nodes into source and
// destination candidates. Empty candidate sets mean the cluster is balanced
// and the planner must not act this pass.
func (b *Balancer) Classify(snap *Snapshot) Candidates {
	conf := b.cslb.Config()

	// Sample stdev needs at least two nodes; a smaller cluster has no
	// rebalancing move anyway.
	if len(snap.Order) < 2 {
		b.Log().Infof("Cluster of %d node(s) is balanced by definition", len(snap.Order))
		return Candidates{}
	}

	mean, stdev := meanStdev(snap)
	allowance := mean * conf.Tolerance
	b.Log().Debugf("Stats: Mean Weight: %.2f, Stdev Weight: %.2f, Disparity Tolerated: %.2f",
		mean, stdev, allowance)

	if allowance > stdev {
		b.Log().Infof("Cluster is balanced (tolerance: %g%%)", conf.Tolerance*100)
		return Candidates{}
	}

	var cand Candidates
	for _, name := range snap.Order {
		state := snap.Nodes[name]
		w := float64(state.Weight)
		if w < mean {
			cand.Destinations = append(cand.Destinations, name)
			b.Log().Debugf("Found destination candidate: %s (weight: %d, workload_count: %d)",
				name, state.Weight, len(state.Workloads))
		}
		if w > mean+stdev {
			cand.Sources = append(cand.Sources, name)
			b.Log().Debugf("Found source candidate: %s (weight: %d, workload_count: %d)",
				name, state.Weight, len(state.Workloads))
		}
	}
	return cand
}

// Plan greedily pairs overloaded sources with underloaded destinations that
// have verified spare capacity. Each source is consumed whether or not a
// destination fits; it is never retried within the pass. The <= guard
// deliberately allows one proposal beyond MaxMigrations, matching long-
// standing behavior.
func (b *Balancer) Plan(snap *Snapshot, cand Candidates) []MigrationSpec {
	sources := append([]string(nil), cand.Sources...)
	destinations := append([]string(nil), cand.Destinations...)
	max := b.cslb.Config().MaxMigrations

	var proposals []MigrationSpec
	for len(sources) > 0 && len(destinations) > 0 && len(proposals) <= max {
		sort.Stable(nodesByWeightDesc{names: sources, snap: snap})
		source := sources[0]
		sources = sources[1:]
		state := snap.Nodes[source]

		if len(state.Workloads) == 0 {
			b.Log().Warnf("Source candidate %s has no eligible workloads", source)
			continue
		}
		candidates := append([]*WorkloadState(nil), state.Workloads...)
		sort.Stable(workloadsByWeight(candidates))
		wl := candidates[0]

		sort.Stable(nodesByWeightAsc{names: destinations, snap: snap})
		placed := false
		for i, destination := range destinations {
			dest := snap.Nodes[destination]
			if float64(dest.MemFree) > wl.MemUsed && dest.CPUFree > wl.CPUUsed {
				destinations = append(destinations[:i], destinations[i+1:]...)
				b.Log().Debugf("Proposing workload migration: '%s' (%s/%d) from node %s to node %s",
					wl.Name, wl.Kind, wl.VMID, source, destination)
				proposals = append(proposals, MigrationSpec{
					Source:      source,
					Destination: destination,
					Name:        wl.Name,
					VMID:        wl.VMID,
					Kind:        wl.Kind,
				})
				placed = true
				break
			}
		}
		if !placed {
			b.Log().Warnf("Could not find a destination node with enough free resources for workload '%s' (%s/%d) on node %s",
				wl.Name, wl.Kind, wl.VMID, source)
		}
	}
	return proposals
}

package weights

import (
	"math"

	"github.com/padthaitofuhot/pve-cslb/pkg/config"
	"github.com/padthaitofuhot/pve-cslb/pkg/proxmox"
	"github.com/sirupsen/logrus"
)

// epsilon is the floor for the free-capacity denominators. A node with no
// spare CPU or memory would otherwise divide by zero (or flip sign); the
// clamp turns it into an extreme finite weight instead, so a saturated node
// classifies as a migration source and never as a destination.
const epsilon = 0.001

// Node converts raw node telemetry into a load score. It returns the score
// together with the node's free memory in bytes and its spare CPU capacity
// in MHz-equivalent units, both needed later for the planner's capacity test.
func Node(name string, status *proxmox.NodeStatus, p config.WeightParameters) (int, int64, float64) {
	cpuMhz := float64(status.CPUInfo.MHz)
	cpuCores := float64(status.CPUInfo.Cores)
	cpuLoad := loadMean(status.LoadAvg)
	cpuTotal := cpuMhz * cpuCores
	cpuUsed := cpuMhz * cpuLoad
	cpuFree := cpuTotal - cpuUsed
	Log().Debugf("Node %s: cpu_mhz: %.2f, cores: %.0f, load: %.2f", name, cpuMhz, cpuCores, cpuLoad)

	cpuDenom := cpuFree
	if cpuDenom < epsilon {
		Log().Warnf("Node %s: CPU saturated (cpu_free %.2f), weight clamped", name, cpuFree)
		cpuDenom = epsilon
	}
	wCPU := p.PercentCPU * (cpuTotal / cpuDenom) * 100
	Log().Debugf("Node %s: cpu_total: %.2f, cpu_free: %.2f, w_cpu: %.2f", name, cpuTotal, cpuFree, wCPU)

	memTotal := float64(status.Memory.Total)
	memFreeNoShared := memTotal - (float64(status.Memory.Used) + float64(status.KSM.Shared))
	memDenom := memFreeNoShared
	if memDenom < epsilon {
		Log().Warnf("Node %s: memory saturated (mem_free_no_shared %.0f), weight clamped", name, memFreeNoShared)
		memDenom = epsilon
	}
	wMem := p.PercentMem * (memTotal / memDenom) * 100
	Log().Debugf("Node %s: mem_total: %.2f MiB, mem_free_no_shared: %.2f MiB, w_mem: %.2f",
		name, mibRound(memTotal), mibRound(memFreeNoShared), wMem)

	weight := int(math.Round(wCPU + wMem))
	Log().Infof("Node %s: weight: %d", name, weight)
	return weight, status.Memory.Free, cpuFree
}

// Workload scores one workload on the same scale as its node. It returns
// the score, the workload's memory usage in bytes and its CPU usage in the
// node's capacity units.
func Workload(name string, wl *proxmox.Workload, status *proxmox.NodeStatus, p config.WeightParameters) (int, float64, float64) {
	cpuMhz := float64(status.CPUInfo.MHz)
	cpuUsed := cpuMhz * float64(wl.CPU)
	if cpuUsed <= epsilon {
		cpuUsed = epsilon
	}
	cpuMax := cpuMhz * float64(wl.CPUs)
	wCPU := p.PercentCPU * (cpuUsed / cpuMax) * 100

	memUsed := float64(wl.Mem)
	wMem := p.PercentMem * (memUsed / float64(wl.MaxMem)) * 100

	weight := int(math.Round(wCPU + wMem))
	Log().Debugf("Node %s: workload %d '%s': weight: %d, mem_used: %.2f MiB, cpu_used: %.2f",
		name, int64(wl.VMID), wl.Name, weight, mibRound(memUsed), cpuUsed)
	return weight, memUsed, cpuUsed
}

func Log() *logrus.Entry {
	return logrus.WithField("context", "weights")
}

func loadMean(loads []proxmox.Float) float64 {
	if len(loads) == 0 {
		return 0
	}
	var sum float64
	for _, l := range loads {
		sum += float64(l)
	}
	return sum / float64(len(loads))
}

func mibRound(bytes float64) float64 {
	return math.Round(bytes/(1<<20)*100) / 100
}

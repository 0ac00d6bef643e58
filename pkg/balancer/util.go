package balancer

import (
	"math"

	"github.com/sirupsen/logrus"
)

func (b *Balancer) Log() *logrus.Entry {
	log := b.cslb.Log().WithField("context", "balancer")
	return log
}

// meanStdev returns the mean and sample standard deviation of the node
// weights. Callers guarantee at least two nodes.
func meanStdev(snap *Snapshot) (float64, float64) {
	n := float64(len(snap.Order))
	var sum float64
	for _, name := range snap.Order {
		sum += float64(snap.Nodes[name].Weight)
	}
	mean := sum / n

	var sq float64
	for _, name := range snap.Order {
		d := float64(snap.Nodes[name].Weight) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / (n - 1))
}

func containsString(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}

type nodesByWeightDesc struct {
	names []string
	snap  *Snapshot
}

func (s nodesByWeightDesc) Len() int      { return len(s.names) }
func (s nodesByWeightDesc) Swap(i, j int) { s.names[i], s.names[j] = s.names[j], s.names[i] }
func (s nodesByWeightDesc) Less(i, j int) bool {
	return s.snap.Nodes[s.names[i]].Weight > s.snap.Nodes[s.names[j]].Weight
}

type nodesByWeightAsc struct {
	names []string
	snap  *Snapshot
}

func (s nodesByWeightAsc) Len() int      { return len(s.names) }
func (s nodesByWeightAsc) Swap(i, j int) { s.names[i], s.names[j] = s.names[j], s.names[i] }
func (s nodesByWeightAsc) Less(i, j int) bool {
	return s.snap.Nodes[s.names[i]].Weight < s.snap.Nodes[s.names[j]].Weight
}

type workloadsByWeight []*WorkloadState

func (w workloadsByWeight) Len() int           { return len(w) }
func (w workloadsByWeight) Swap(i, j int)      { w[i], w[j] = w[j], w[i] }
func (w workloadsByWeight) Less(i, j int) bool { return w[i].Weight < w[j].Weight }

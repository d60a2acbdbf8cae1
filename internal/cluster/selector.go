// Package cluster implements reusable-cluster selection over a snapshot
// of the remote cluster fleet.
package cluster

import (
	"github.com/LotharSee/mortar-luigi/internal/mortar"
)

// SelectReusableCluster picks an idle multi-job cluster of at least
// minSize workers from a fresh snapshot. Among matches the largest
// cluster wins; on equal sizes the one appearing first in the snapshot
// is kept (stable tie-break). The second return is false when no
// cluster qualifies, in which case the caller submits to a freshly
// provisioned cluster instead.
//
// Pure function of the snapshot; the snapshot is not cached, so a race
// where another job claims the chosen cluster before submission is
// possible and accepted.
func SelectReusableCluster(clusters []mortar.Cluster, minSize int) (mortar.Cluster, bool) {
	var best mortar.Cluster
	found := false
	for _, c := range clusters {
		if !reusable(c, minSize) {
			continue
		}
		if !found || c.Size > best.Size {
			best = c
			found = true
		}
	}
	return best, found
}

func reusable(c mortar.Cluster, minSize int) bool {
	return c.StatusCode == mortar.ClusterStatusRunning &&
		c.ClusterTypeCode != mortar.ClusterTypeSingleJob &&
		c.Idle() &&
		c.Size >= minSize
}

package domain

import "strconv"

// ClusterLabel is either Unassigned or a member of a cluster.
// The zero value is Unassigned.
type ClusterLabel struct {
	id       int
	assigned bool
}

var Unassigned = ClusterLabel{}

func Member(id int) ClusterLabel { return ClusterLabel{id: id, assigned: true} }

// ID returns the cluster id and whether the label is a membership.
func (l ClusterLabel) ID() (int, bool) { return l.id, l.assigned }

func (l ClusterLabel) IsAssigned() bool { return l.assigned }

// Int returns the id, or -1 for Unassigned. Used only at the reporting boundary.
func (l ClusterLabel) Int() int {
	if !l.assigned {
		return -1
	}
	return l.id
}

func (l ClusterLabel) String() string {
	if !l.assigned {
		return "unassigned"
	}
	return strconv.Itoa(l.id)
}

// SameCluster is true only when both labels are memberships of the same cluster.
func SameCluster(a, b ClusterLabel) bool {
	return a.assigned && b.assigned && a.id == b.id
}

// Cluster is a group of orders produced by the clusterer.
type Cluster struct {
	ID       int
	OrderIDs []int64
	Centroid Coordinates
	// OutlierIDs lists members that were noise before reassignment.
	OutlierIDs []int64
}

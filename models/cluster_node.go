package models

import "time"

// ClusterNode is one row of the cluster registry.
// A row is created the first time a node name is referenced and is never
// deleted by normal operation, so the table doubles as membership history.
type ClusterNode struct {
	// Name is the lower-cased node name and the primary key.
	Name string `json:"name" gorm:"column:node_name;primaryKey;size:64"`

	// LastHeartbeat is refreshed by the owning node on every tick.
	LastHeartbeat time.Time `json:"last_heartbeat" gorm:"column:timestamp"`

	// Active marks the node currently expected to serve traffic.
	// Advisory only: nothing prevents two rows from being active.
	Active bool `json:"active" gorm:"column:active"`

	// Disabled is an operator override that removes the node from
	// failover candidacy.
	Disabled bool `json:"disabled" gorm:"column:disabled"`

	// Transferring marks a node in the middle of a handoff.
	Transferring bool `json:"transferring" gorm:"column:transferring"`
}

// TableName pins the gorm table name.
func (ClusterNode) TableName() string {
	return "cluster_node"
}

// NodeState is the lifecycle state of a node as seen through its row.
type NodeState string

const (
	NodeStateUnregistered NodeState = "unregistered"
	NodeStateStandby      NodeState = "standby"
	NodeStateActive       NodeState = "active"
	NodeStateTransferring NodeState = "transferring"
)

// State derives the lifecycle state from the row flags.
// A nil row is unregistered.
func (n *ClusterNode) State() NodeState {
	switch {
	case n == nil:
		return NodeStateUnregistered
	case n.Transferring:
		return NodeStateTransferring
	case n.Active:
		return NodeStateActive
	default:
		return NodeStateStandby
	}
}

// Fresh reports whether the node heartbeat is within staleAfter of now.
func (n *ClusterNode) Fresh(now time.Time, staleAfter time.Duration) bool {
	return n != nil && now.Sub(n.LastHeartbeat) <= staleAfter
}

// ClusterNodeInfo is a registry row as returned by the HTTP API.
type ClusterNodeInfo struct {
	ClusterNode

	// State is the derived lifecycle state.
	State NodeState `json:"state"`

	// Healthy is true when the heartbeat is within the stale threshold.
	Healthy bool `json:"healthy"`
}

// ClusterNodeListResponse represents the response for listing registry rows.
type ClusterNodeListResponse struct {
	// Nodes is every row in the registry.
	Nodes []ClusterNodeInfo `json:"nodes"`

	// Total is the number of rows.
	Total int `json:"total"`
}

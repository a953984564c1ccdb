package persist

import "path/filepath"

// The default layout mirrors one JSON entity per (resource, client), except
// for the navigation stack which is an ordered list store (one numeric-key
// entry per pushed agent):
//
//	<base>/_swarm_active_agent/<swarmName>/<clientId>.json = {"agentName": ...}
//	<base>/_swarm_navigation_stack/<swarmName>/<clientId>/<n>.json = {"agentName": ...}
//	<base>/state/<stateName>/<clientId>.json = {"state": ...}
//	<base>/storage/<storageName>/<clientId>.json = {"data": [...]}
//	<base>/memory/<clientId>.json = {"data": ...}

// ActiveAgentDir returns the directory for a swarm's active-agent entities.
func ActiveAgentDir(base, swarmName string) string {
	return filepath.Join(base, "_swarm_active_agent", swarmName)
}

// NavigationStackDir returns the list-store directory for one client's
// navigation stack.
func NavigationStackDir(base, swarmName, clientID string) string {
	return filepath.Join(base, "_swarm_navigation_stack", swarmName, clientID)
}

// StateDir returns the directory for a state's entities.
func StateDir(base, stateName string) string {
	return filepath.Join(base, "state", stateName)
}

// StorageDir returns the directory for a storage's entities.
func StorageDir(base, storageName string) string {
	return filepath.Join(base, "storage", storageName)
}

// MemoryDir returns the directory for ad-hoc per-client memory entities.
func MemoryDir(base string) string {
	return filepath.Join(base, "memory")
}

// ActiveAgentEntity is the payload of active-agent entities and of the
// navigation stack's list entries.
type ActiveAgentEntity struct {
	AgentName string `json:"agentName"`
}

// StateEntity is the payload stored per (state, client).
type StateEntity struct {
	State any `json:"state"`
}

// StorageEntity is the payload stored per (storage, client).
type StorageEntity struct {
	Data []map[string]any `json:"data"`
}

package toolbridge

// ToolSpec documents one catalogue entry.
type ToolSpec struct {
	Name        string
	Description string
}

// Catalogue is the fixed, exhaustive list of tool names the bridge
// serves. Any other name is rejected before dispatch.
var Catalogue = []ToolSpec{
	{Name: "health_check", Description: "Calls the coordinator's /network-status."},
	{Name: "beta_analyze", Description: "POSTs the analyzer's /analyze endpoint."},
	{Name: "gamma_design", Description: "POSTs the architect's /design endpoint."},
	{Name: "delta_test", Description: "POSTs the tester's /generate-tests endpoint."},
	{Name: "sigma_document", Description: "POSTs the communicator's /document endpoint."},
	{Name: "omega_orchestrate", Description: "POSTs the coordinator's /orchestrate endpoint."},
	{Name: "store_artifact", Description: "Stores an artifact via a clone's /artifacts endpoint."},
	{Name: "get_artifact", Description: "Retrieves an artifact via a clone's /artifacts/:id endpoint."},
	{Name: "audit_log", Description: "GETs /audit on the named clone."},
}

var knownTools = func() map[string]bool {
	m := make(map[string]bool, len(Catalogue))
	for _, t := range Catalogue {
		m[t.Name] = true
	}
	return m
}()

// IsKnown reports whether name is one of the exact catalogue entries.
func IsKnown(name string) bool { return knownTools[name] }

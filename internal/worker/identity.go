package worker

// Role names a clone's position in the system. Fixed for a process
// lifetime.
type Role string

const (
	RoleCoordinator  Role = "coordinator"
	RoleAnalyzer     Role = "analyzer"
	RoleArchitect    Role = "architect"
	RoleTester       Role = "tester"
	RoleCommunicator Role = "communicator"
)

const defaultInternalPort = 3001

// defaultExternalPorts is the conventional role-to-port map. Internal
// processes still read PORT themselves; this map is only used by the
// coordinator registry to seed default peer base URLs.
var defaultExternalPorts = map[Role]int{
	RoleCoordinator:  3000,
	RoleAnalyzer:     3002,
	RoleArchitect:    3003,
	RoleTester:       3004,
	RoleCommunicator: 3005,
}

// DefaultPort returns the conventional external port for role, or 0 if the
// role is unrecognized.
func DefaultPort(role Role) int {
	return defaultExternalPorts[role]
}

// Identity is the descriptor set once at construction. Roles differ only
// in system prompt, specialization, and default port; everything else
// about a worker is shared behavior.
type Identity struct {
	Role           Role
	Specialization string
	Port           int
	SystemPrompt   string
}

// systemPromptFor returns the role-specific system prompt. Every prompt
// must include the phrase "NO SIMULATIONS LAW" so downstream checks (and
// the LLM itself) can verify the instruction was delivered.
func systemPromptFor(role Role) string {
	const law = "NO SIMULATIONS LAW: you must never fabricate, simulate, or pretend to execute an action you did not actually perform. Every response must reflect genuine work."
	switch role {
	case RoleAnalyzer:
		return "You are Beta, a code analysis specialist. Examine the given code for correctness, structure, and risk. " + law
	case RoleArchitect:
		return "You are Gamma, a software architecture specialist. Translate requirements into a concrete design. " + law
	case RoleTester:
		return "You are Delta, a test engineering specialist. Generate thorough, runnable test suites for the given code. " + law
	case RoleCommunicator:
		return "You are Sigma, a technical communication specialist. Produce clear documentation for the given content. " + law
	case RoleCoordinator:
		return "You are Omega, the coordinator. Delegate work to specialist clones and aggregate their results faithfully. " + law
	default:
		return "You are a clone in the network. " + law
	}
}

// NewIdentity builds an Identity for role, defaulting specialization and
// port when unset. port == 0 falls back to 3001; this constructor does not
// read the PORT env var itself, callers resolve it (config.Load) before
// calling, so no port is ever hard-coded in role logic.
func NewIdentity(role Role, specialization string, port int) Identity {
	if port == 0 {
		port = defaultInternalPort
	}
	return Identity{
		Role:           role,
		Specialization: specialization,
		Port:           port,
		SystemPrompt:   systemPromptFor(role),
	}
}

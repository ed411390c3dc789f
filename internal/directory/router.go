package directory

// Role is the routing category for a sender identifier. The set is closed:
// strategy selection switches over it exactly once per analysis cycle and is
// never re-decided downstream.
type Role string

const (
	RoleIgnored  Role = "IGNORED"
	RoleAdmin    Role = "ADMIN"
	RoleEmployee Role = "EMPLOYEE"
	RolePartner  Role = "PARTNER"
	RoleExternal Role = "EXTERNAL"
)

// Classification pairs a role with the display label used to parameterize the
// analysis persona. Ignored classifications carry no label.
type Classification struct {
	Role  Role
	Label string
}

// Directory holds the static identifier->name maps the router classifies
// against. The four sets are disjoint by configuration; the ignored set wins
// when they are not.
type Directory struct {
	Ignored   []string
	Admins    map[string]string
	Employees map[string]string
	Partners  map[string]string
}

// Router classifies sender identifiers against static directories. Classify
// is total and deterministic: every input maps to exactly one role, with
// EXTERNAL as the default.
type Router struct {
	ignored   map[string]struct{}
	admins    map[string]string
	employees map[string]string
	partners  map[string]string
}

func NewRouter(dir Directory) *Router {
	ignored := make(map[string]struct{}, len(dir.Ignored))
	for _, id := range dir.Ignored {
		ignored[id] = struct{}{}
	}
	return &Router{
		ignored:   ignored,
		admins:    dir.Admins,
		employees: dir.Employees,
		partners:  dir.Partners,
	}
}

// Classify returns the role for senderID. The ignored set overrides all other
// classifications, including admin.
func (r *Router) Classify(senderID string) Classification {
	if _, ok := r.ignored[senderID]; ok {
		return Classification{Role: RoleIgnored}
	}
	if label, ok := r.admins[senderID]; ok {
		return Classification{Role: RoleAdmin, Label: label}
	}
	if label, ok := r.employees[senderID]; ok {
		return Classification{Role: RoleEmployee, Label: label}
	}
	if label, ok := r.partners[senderID]; ok {
		return Classification{Role: RolePartner, Label: label}
	}
	return Classification{Role: RoleExternal, Label: "External contact"}
}

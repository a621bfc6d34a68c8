package entity

// Role identifies a staff role in the store hierarchy
type Role string

const (
	RoleSalesperson   Role = "salesperson"
	RoleShiftLead     Role = "shift_lead"
	RoleManager       Role = "manager"
	RoleSeniorManager Role = "senior_manager"
	RoleAreaManager   Role = "area_manager"
	RoleAdmin         Role = "admin"
)

// roleRanks is the single ordering authority shared by the tier validator,
// the rule resolver and the approval ladder. Higher rank outranks lower.
var roleRanks = map[Role]int{
	RoleSalesperson:   0,
	RoleShiftLead:     1,
	RoleManager:       2,
	RoleSeniorManager: 3,
	RoleAreaManager:   4,
	RoleAdmin:         5,
}

// Rank returns the numeric rank of the role, or -1 for an unknown role
func (r Role) Rank() int {
	rank, ok := roleRanks[r]
	if !ok {
		return -1
	}
	return rank
}

// IsValid returns true if the role is a known role
func (r Role) IsValid() bool {
	_, ok := roleRanks[r]
	return ok
}

// AtLeast returns true if this role ranks equal to or above the other role
func (r Role) AtLeast(other Role) bool {
	return r.Rank() >= other.Rank()
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// ApproverRoles are the roles that may sit on a rule's approval ladder,
// ordered by ascending rank.
var ApproverRoles = []Role{RoleShiftLead, RoleManager, RoleAreaManager, RoleAdmin}

// HighestApproverRole returns the top of the approver hierarchy
func HighestApproverRole() Role {
	return ApproverRoles[len(ApproverRoles)-1]
}

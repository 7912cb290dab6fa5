package role

import (
	"strings"

	"github.com/rs/zerolog"

	"hrims/internal/domain/directory"
)

const (
	LevelHR       = -1
	LevelVPAA     = 0
	LevelDean     = 1
	LevelChair    = 2
	LevelFaculty  = 3
	LevelPartTime = 4
	LevelStaff    = 5
	LevelDefault  = 99
)

// Source names the employee field a role level was taken from.
type Source string

const (
	SourceNone              Source = "none"
	SourceHRFlag            Source = "is_hr"
	SourceAcademicRoleLevel Source = "academic_role_level"
	SourceRoleLevel         Source = "role_level"
	SourcePositionTitle     Source = "position_title"
)

var roleTable = map[int]Role{
	LevelHR: {
		Level:         LevelHR,
		Title:         "HR Administrator",
		CanApprove:    true,
		ApprovalScope: ScopeAll,
		Permissions:   allPermissions(),
	},
	LevelVPAA: {
		Level:         LevelVPAA,
		Title:         "Vice President for Academic Affairs",
		CanApprove:    true,
		ApprovalScope: ScopeAll,
		Permissions:   Permissions{ViewAllRequests: true, ApproveRequests: true, ViewReports: true},
	},
	LevelDean: {
		Level:         LevelDean,
		Title:         "Dean",
		CanApprove:    true,
		ApprovalScope: ScopeDepartment,
		Permissions:   Permissions{ApproveRequests: true, ViewReports: true},
	},
	LevelChair: {
		Level:         LevelChair,
		Title:         "Program Chair",
		CanApprove:    true,
		ApprovalScope: ScopeProgram,
		Permissions:   Permissions{ApproveRequests: true},
	},
	LevelFaculty:  {Level: LevelFaculty, Title: "Faculty", ApprovalScope: ScopeNone},
	LevelPartTime: {Level: LevelPartTime, Title: "Part-time Faculty", ApprovalScope: ScopeNone},
	LevelStaff:    {Level: LevelStaff, Title: "Secretary", ApprovalScope: ScopeNone},
}

// Default is the role of anyone the resolver cannot place.
func Default() Role {
	return Role{Level: LevelDefault, Title: "Employee", ApprovalScope: ScopeNone}
}

// HRAdministrator is the fixed super-admin role.
func HRAdministrator() Role {
	return roleTable[LevelHR]
}

// ForLevel returns the table role for level, or the default role.
func ForLevel(level int) Role {
	if r, ok := roleTable[level]; ok {
		return r
	}
	return Default()
}

// ResolveRole derives the role for emp. It is a pure function of its input.
func ResolveRole(emp *directory.Employee) Role {
	r, _ := resolve(emp)
	return r
}

func resolve(emp *directory.Employee) (Role, Source) {
	if emp == nil {
		return Default(), SourceNone
	}
	if emp.IsHR {
		return HRAdministrator(), SourceHRFlag
	}
	level, source := resolveLevel(emp)
	return ForLevel(level), source
}

func resolveLevel(emp *directory.Employee) (int, Source) {
	if emp.AcademicRoleLevel != nil {
		return *emp.AcademicRoleLevel, SourceAcademicRoleLevel
	}
	if emp.RoleLevel != nil {
		return *emp.RoleLevel, SourceRoleLevel
	}
	if level, ok := LevelFromTitle(emp.PositionTitle); ok {
		return level, SourcePositionTitle
	}
	return LevelDefault, SourceNone
}

// LevelFromTitle infers a level from a free-text position title. Rules are
// checked in a fixed order and the first hit wins, so "Part-Time Faculty
// Secretary" is level 4, not 5. Substring matching is crude ("pc" matches
// inside other words); upstream should send academic_role_level instead.
func LevelFromTitle(title string) (int, bool) {
	t := strings.ToLower(strings.TrimSpace(title))
	if t == "" {
		return LevelDefault, false
	}
	switch {
	case strings.Contains(t, "vpaa") || strings.Contains(t, "vice president"):
		return LevelVPAA, true
	case strings.Contains(t, "dean"):
		return LevelDean, true
	case strings.Contains(t, "chair") || strings.Contains(t, "pc"):
		return LevelChair, true
	case strings.Contains(t, "faculty") && !strings.Contains(t, "part"):
		return LevelFaculty, true
	case strings.Contains(t, "part") && strings.Contains(t, "faculty"):
		return LevelPartTime, true
	case strings.Contains(t, "secretary") || strings.Contains(t, "sec"):
		return LevelStaff, true
	}
	return LevelDefault, false
}

// ResolutionRecorder receives one call per resolution. *metrics.Collector
// satisfies it.
type ResolutionRecorder interface {
	RoleResolved(source string)
}

// Resolver wraps ResolveRole with logging and metrics. Title inference is a
// deprecated fallback and is logged every time it decides a role.
type Resolver struct {
	log     zerolog.Logger
	metrics ResolutionRecorder
}

func NewResolver(log zerolog.Logger, metrics ResolutionRecorder) *Resolver {
	return &Resolver{log: log, metrics: metrics}
}

func (r *Resolver) Resolve(emp *directory.Employee) Role {
	resolved, source := resolve(emp)
	if r.metrics != nil {
		r.metrics.RoleResolved(string(source))
	}
	if source == SourcePositionTitle {
		r.log.Warn().
			Str("employee_id", emp.ID).
			Str("position_title", emp.PositionTitle).
			Int("level", resolved.Level).
			Msg("role level inferred from position title; academic_role_level is missing")
	}
	return resolved
}

package models

// Qualification is a user's membership tier.
type Qualification string

const (
	QualificationPending   Qualification = "pending"
	QualificationAssociate Qualification = "associate"
	QualificationRegular   Qualification = "regular"
	QualificationActive    Qualification = "active"
)

func (q Qualification) Valid() bool {
	switch q {
	case QualificationPending, QualificationAssociate, QualificationRegular, QualificationActive:
		return true
	}
	return false
}

// AtLeast reports whether q ranks at or above min on the
// pending < associate < regular < active scale.
func (q Qualification) AtLeast(min Qualification) bool {
	return q.rank() >= min.rank()
}

func (q Qualification) rank() int {
	switch q {
	case QualificationAssociate:
		return 1
	case QualificationRegular:
		return 2
	case QualificationActive:
		return 3
	}
	return 0
}

// ProjectStatus is the lifecycle stage of a project.
type ProjectStatus string

const (
	ProjectStatusActive      ProjectStatus = "active"
	ProjectStatusMaintenance ProjectStatus = "maintenance"
	ProjectStatusEnded       ProjectStatus = "ended"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusActive, ProjectStatusMaintenance, ProjectStatusEnded:
		return true
	}
	return false
}

// MemberRole is a user's role on one project team.
type MemberRole string

const (
	RoleLeader MemberRole = "leader"
	RoleMember MemberRole = "member"
)

func (r MemberRole) Valid() bool {
	return r == RoleLeader || r == RoleMember
}

// HistoryAction names the kind of a HistoryRecord.
type HistoryAction string

const (
	ActionQualificationChanged HistoryAction = "qualification_changed"
	ActionAdminGranted         HistoryAction = "admin_granted"
	ActionAdminRevoked         HistoryAction = "admin_revoked"
	ActionProjectJoined        HistoryAction = "project_joined"
	ActionProjectLeft          HistoryAction = "project_left"
	ActionProjectRoleChanged   HistoryAction = "project_role_changed"
)

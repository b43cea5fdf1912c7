package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionExamsMonitor allows watching live attempts and their risk level.
	PermissionExamsMonitor Permission = "exams:monitor"

	// PermissionExamsGrade allows force-submitting and recalculating attempts.
	PermissionExamsGrade Permission = "exams:grade"

	// PermissionParticipantsWrite allows enabling and disabling participants.
	PermissionParticipantsWrite Permission = "participants:write"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionExamsMonitor,
	PermissionExamsGrade,
	PermissionParticipantsWrite,
}

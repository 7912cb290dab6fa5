package directory

// Viewer describes who is reading an employee record.
type Viewer struct {
	Self    bool
	Manager bool
}

// FilterFields strips fields the viewer may not see. Employee managers and
// the employee themself see everything; approvers reading someone in scope
// lose the identity-provider link and office.
func FilterFields(emp *Employee, viewer Viewer) {
	if emp == nil || viewer.Self || viewer.Manager {
		return
	}
	emp.AuthID = ""
	emp.OfficeID = ""
}

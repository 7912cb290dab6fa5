package leave

type Status string

const (
	StatusPending            Status = "Pending"
	StatusSupervisorApproved Status = "Supervisor_Approved"
	StatusApproved           Status = "Approved"
	StatusRejected           Status = "Rejected"
	StatusCancelled          Status = "Cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSupervisorApproved, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

var AllStatuses = []Status{StatusPending, StatusSupervisorApproved, StatusApproved, StatusRejected, StatusCancelled}

type Action string

const (
	ActionCreate        Action = "create"
	ActionPreApprove    Action = "pre_approve"
	ActionFinalApprove  Action = "final_approve"
	ActionBypassApprove Action = "bypass_approve"
	ActionReject        Action = "reject"
	ActionCancel        Action = "cancel"
)

// Target is the status a successful action leads to.
func (a Action) Target() Status {
	switch a {
	case ActionCreate:
		return StatusPending
	case ActionPreApprove:
		return StatusSupervisorApproved
	case ActionFinalApprove, ActionBypassApprove:
		return StatusApproved
	case ActionReject:
		return StatusRejected
	case ActionCancel:
		return StatusCancelled
	}
	return ""
}

func (a Action) DeductsCredits() bool {
	return a == ActionFinalApprove || a == ActionBypassApprove
}

const auditModule = "leave"

package notifications

const (
	TypeLeaveSubmitted   = "leave_submitted"
	TypeLeavePreApproved = "leave_pre_approved"
	TypeLeaveApproved    = "leave_approved"
	TypeLeaveRejected    = "leave_rejected"
	TypeLeaveCancelled   = "leave_cancelled"
)

const jobType = "leave_notification"

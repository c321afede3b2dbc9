package constants

const (
	OnboardHospital    = "onboard_hospital"
	DeactivateHospital = "deactivate_hospital"
	CreateInvite       = "create_invite"
	DeactivateInvite   = "deactivate_invite"
	ViewInvites        = "view_invites"
	ViewSecurity       = "view_security"
	ResolveAlert       = "resolve_alert"
)

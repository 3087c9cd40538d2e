package consts

// SecurityPolicy selects how a channel treats unknown users.
type SecurityPolicy string

const (
	SecurityPolicyWelcome SecurityPolicy = "welcome"
	SecurityPolicySilent  SecurityPolicy = "silent"
	SecurityPolicyCustom  SecurityPolicy = "custom"
)

package pairing

import (
	"time"

	"github.com/orchestrator/core/internal/consts"
)

const (
	securityPolicyWelcome = consts.SecurityPolicyWelcome
	securityPolicySilent  = consts.SecurityPolicySilent
	securityPolicyCustom  = consts.SecurityPolicyCustom

	defaultPairingWelcomeWindowSec = 300
	defaultPairingMaxResp          = 3
	maxPairingPersistCASRetries    = 3
	defaultPairingCodeTTL          = 5 * time.Minute

	defaultPairingWelcomeTemplate = "Welcome. Please enter your pairing code \n\n---\n<reqId:%s>"
)

// Challenge is one outstanding pairing code for one principal.
type Challenge struct {
	ReqID     string
	Code      string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Decision is the outcome of evaluating an unknown user's message.
type Decision struct {
	Respond   bool
	Message   string
	Policy    consts.SecurityPolicy
	Challenge Challenge
}

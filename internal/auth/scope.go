package auth

import "fmt"

// Scope restricts which operation may consume a token.
type Scope int

const (
	// ScopeEmailVerification marks email-confirmation tokens. They carry no
	// scope claim on the wire.
	ScopeEmailVerification Scope = iota
	ScopeAccess
	ScopeRefresh
)

const (
	scopeClaimAccess  = "access_token"
	scopeClaimRefresh = "refresh_token"
)

// String returns the wire value of the scope claim.
func (s Scope) String() string {
	switch s {
	case ScopeAccess:
		return scopeClaimAccess
	case ScopeRefresh:
		return scopeClaimRefresh
	case ScopeEmailVerification:
		return ""
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

func parseScope(claim string) (Scope, error) {
	switch claim {
	case scopeClaimAccess:
		return ScopeAccess, nil
	case scopeClaimRefresh:
		return ScopeRefresh, nil
	case "":
		return ScopeEmailVerification, nil
	default:
		return 0, fmt.Errorf("%w: unknown scope %q", ErrInvalidToken, claim)
	}
}

// internal/middleware/policy.go
package middleware

import (
	"strings"

	"fleetdesk-service/internal/domain/auth"
)

const (
	LoginPath        = "/login"
	AuthPath         = "/auth"
	DriverPath       = "/driver"
	DriverHomePath   = "/driver/delivery"
	AdminHomePath    = "/"
	ProfileErrorPath = "/login?error=profile_unavailable"
	// APIPath roots the JSON API; nothing under it bypasses the gate.
	APIPath          = "/api"
)

type Action int

const (
	ActionPass Action = iota
	ActionRedirect
)

func (a Action) String() string {
	if a == ActionRedirect {
		return "redirect"
	}
	return "pass"
}

// Subject is what the gate knows about the caller.
type Subject struct {
	Authenticated bool
	Role          auth.Role
	// Defaulted is set when the role could not be read from the profile.
	Defaulted bool
}

type Decision struct {
	Action   Action
	Location string
}

func pass() Decision { return Decision{Action: ActionPass} }

func redirect(location string) Decision {
	return Decision{Action: ActionRedirect, Location: location}
}

// Policy is the gate's routing table.
type Policy struct {
	// FailClosed sends users whose role could not be resolved back to the
	// login page instead of treating them as administrators.
	FailClosed bool
}

// Decide maps a raw, case-sensitive URL path and subject to an outcome.
func (p Policy) Decide(path string, s Subject) Decision {
	public := hasSegmentPrefix(path, LoginPath) || hasSegmentPrefix(path, AuthPath)

	if !s.Authenticated {
		if public {
			return pass()
		}
		return redirect(LoginPath)
	}

	if p.FailClosed && s.Defaulted {
		if public {
			return pass()
		}
		return redirect(ProfileErrorPath)
	}

	inDriver := hasSegmentPrefix(path, DriverPath)

	if s.Role.IsDriver() {
		if inDriver {
			return pass()
		}
		return redirect(DriverHomePath)
	}

	if inDriver || hasSegmentPrefix(path, LoginPath) {
		return redirect(AdminHomePath)
	}
	return pass()
}

// hasSegmentPrefix reports whether path equals prefix or continues it with a
// new segment. "/driver" matches "/driver" and "/driver/x" but not "/drivers".
func hasSegmentPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// Package policy decides whether a requested command may run at all and
// where. It validates command names, working directories, and caller
// supplied argument values against configuration loaded once at startup.
// Every denial carries a stable reason code; the gate never executes
// anything itself.
package policy

import (
	"errors"
	"fmt"
)

// Code identifies why an authorization was denied. Codes are stable and
// surfaced verbatim to callers.
type Code string

const (
	// CodeCommandNotAllowed means the command basename is not in the
	// applicable allow-list.
	CodeCommandNotAllowed Code = "CommandNotAllowed"

	// CodePathNotAllowed means the working directory resolves outside
	// every allow-listed root.
	CodePathNotAllowed Code = "PathNotAllowed"

	// CodePathQualifiedCommandRejected means strict-path mode is enabled
	// for the group and the command contained a path separator.
	CodePathQualifiedCommandRejected Code = "PathQualifiedCommandRejected"

	// CodeFlagInjection means a caller-supplied value began with "-"
	// where a plain value was expected.
	CodeFlagInjection Code = "FlagInjection"
)

// Denial is the error returned for every policy refusal. It is produced
// before any process is spawned and is never retried by the framework.
type Denial struct {
	Code   Code
	Group  string
	Detail string
}

func (d *Denial) Error() string {
	if d.Group != "" {
		return fmt.Sprintf("policy denied (%s, group %s): %s", d.Code, d.Group, d.Detail)
	}
	return fmt.Sprintf("policy denied (%s): %s", d.Code, d.Detail)
}

// DenialCode extracts the reason code from an error, or "" if the error is
// not a policy denial.
func DenialCode(err error) Code {
	var d *Denial
	if errors.As(err, &d) {
		return d.Code
	}
	return ""
}

// IsDenial reports whether err is a policy denial.
func IsDenial(err error) bool {
	var d *Denial
	return errors.As(err, &d)
}

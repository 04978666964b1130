package crm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies remote call failures at the boundary so callers can
// pattern-match instead of sniffing message strings.
type ErrorKind int

const (
	// KindTimeout covers a single call exceeding its budget.
	KindTimeout ErrorKind = iota
	// KindTransient covers gateway-timeout-class failures worth retrying.
	KindTransient
	// KindBusiness covers portal-reported errors (bad field, permission).
	KindBusiness
	// KindMalformed covers responses that cannot be parsed at all.
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindTransient:
		return "transient"
	case KindBusiness:
		return "business"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// CallError is the typed failure produced by an Invoker or the page parser.
type CallError struct {
	Kind    ErrorKind
	Method  string
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("crm: %s call %s: %s", e.Kind, e.Method, e.Message)
}

// ErrDeadline reports that a whole listing exceeded its aggregate budget,
// regardless of per-page retry state.
var ErrDeadline = errors.New("crm: fetch deadline exceeded")

// Retryable reports whether an error is worth retrying on the same page.
func Retryable(err error) bool {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind == KindTimeout || ce.Kind == KindTransient
	}
	return false
}

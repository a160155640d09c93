package specialist

import (
	"fmt"

	"devteam/pkg/proto"
)

// InvocationFailure is the terminal outcome of a specialist invocation that
// could not produce a valid result. Reason is the machine-readable code the
// workflow record will carry.
type InvocationFailure struct {
	Role   proto.Actor
	Reason proto.FailureReason
	Detail string

	// Malformed holds every validator-rejected payload, in order, so the
	// message log can carry the full audit trail.
	Malformed []string
}

func (e *InvocationFailure) Error() string {
	return fmt.Sprintf("%s invocation failed (%s): %s", e.Role, e.Reason, e.Detail)
}

// internal/types/ids.go
package types

import (
	"strings"

	"github.com/google/uuid"
)

type InboxID string

func NewInboxID() InboxID {
	return InboxID(uuid.New().String())
}

// DeploymentInboxID scopes a graph to its hosting project so the same
// inbox resolves to the same id on every machine.
func DeploymentInboxID(projectID, graphID string) InboxID {
	return InboxID(strings.Join([]string{projectID, graphID}, ":"))
}

// IsUUID reports whether s parses as a UUID.
func IsUUID(s string) bool {
	return uuid.Validate(s) == nil
}

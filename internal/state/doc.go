// Package state provides filesystem-backed storage implementations.
package state

import "github.com/user/agentinbox/internal/types"

// Compile-time interface compliance checks.
var _ types.Preferences = (*PreferenceStore)(nil)

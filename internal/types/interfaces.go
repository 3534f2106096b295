// internal/types/interfaces.go
package types

// Preferences is a flat string key/value store.
type Preferences interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// Notifier surfaces toasts to the user.
type Notifier interface {
	Notify(t Toast)
}

const (
	PrefAPIKey           = "inbox:langchain_api_key"
	PrefAgentInboxes     = "inbox:agent_inboxes"
	PrefLastSyncedAt     = "inbox:last_synced_at"
	PrefBackfillComplete = "inbox:id_backfill_completed"
)

package types

// ActionType tags the payload kind of a queued action.
type ActionType string

// Known action kinds. The queue accepts only registered kinds.
const (
	ActionTransaction   ActionType = "TRANSACTION"
	ActionDeployAccount ActionType = "DEPLOY_ACCOUNT"
)

// Valid reports whether t is a known action kind.
func (t ActionType) Valid() bool {
	switch t {
	case ActionTransaction, ActionDeployAccount:
		return true
	default:
		return false
	}
}

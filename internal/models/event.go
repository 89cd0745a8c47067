package models

// Operation tags carried on the change topic. "create" and "update" are
// legacy spellings kept for producers that distinguish the two; the
// consumer treats all three non-delete tags as an upsert.
const (
	OpUpsert = "upsert"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ChangeEvent is the wire format of one program mutation on the change
// topic. Payload carries a full field snapshot for upserts and stays
// empty for deletes, since a delete removes the index entry outright.
type ChangeEvent struct {
	Op        string         `json:"op"`
	ProgramID int64          `json:"program_id"`
	Payload   map[string]any `json:"payload"`
}

// IsUpsert reports whether op is one of the upsert spellings.
func IsUpsert(op string) bool {
	return op == OpUpsert || op == OpCreate || op == OpUpdate
}

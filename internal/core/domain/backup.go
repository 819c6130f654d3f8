package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// ItemSnapshot is the remote representation of one target captured just
// before mutation. Restore writes this representation back verbatim.
type ItemSnapshot struct {
	Target string       `json:"target"`
	Class  ContentClass `json:"class"`
	Item   *Item        `json:"item,omitempty"`
	// Missing marks targets that did not exist at snapshot time; restore
	// deletes them if the operation created them.
	Missing bool `json:"missing,omitempty"`
}

// Backup is a snapshot of pre-mutation state, referenced (never owned)
// by the operation that requested it.
type Backup struct {
	ID          string         `json:"backup_id"`
	OperationID string         `json:"operation_id"`
	StoreID     string         `json:"store_id"`
	CreatedAt   time.Time      `json:"created"`
	Items       []ItemSnapshot `json:"items"`
}

// NewBackupID generates an identifier of the form
// backup_<timestamp>_<random8>. IDs are never reused or overwritten.
func NewBackupID(now time.Time) string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return fmt.Sprintf("backup_%s_%s", now.Format("20060102_150405"), hex.EncodeToString(b))
}

// RestoreResult reports the outcome of applying a backup.
type RestoreResult struct {
	BackupID string   `json:"backup_id"`
	Restored int      `json:"restored"`
	Errors   []string `json:"errors,omitempty"`
}

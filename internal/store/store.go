// Package store is the persistence boundary for clinical data collections
// and their versioned documents. Implementations must make ReplaceDocument
// a single conditional update, never a read-then-write pair.
package store

import (
	"context"
	"errors"
	"time"

	"stealthcompany.com/firecdc/internal/identity"
)

var (
	// ErrNotFound reports an absent collection or document, or a revision
	// that does not match the stored one. Callers cannot distinguish the
	// three from this error alone.
	ErrNotFound = errors.New("not found")

	// ErrExists reports an insert that collided with an existing key.
	ErrExists = errors.New("already exists")

	// ErrUnavailable reports a backing-store I/O failure. The store never
	// retries on its own.
	ErrUnavailable = errors.New("storage unavailable")
)

// Collection is the registry record for one clinical data collection.
type Collection struct {
	CdcID     string         `json:"cdcId"`
	Identity  *identity.Spec `json:"identity,omitempty"`
	TimeStamp string         `json:"timeStamp"`
}

// ClinicalDocument is one versioned record, keyed by
// (cdcId, patientId, classifier) with a monotonic revision.
type ClinicalDocument struct {
	CdcID      string      `json:"cdcId"`
	PatientID  string      `json:"patientId"`
	Classifier string      `json:"classifier"`
	RevID      int         `json:"revId"`
	Doc        interface{} `json:"doc"`
	TimeStamp  string      `json:"timeStamp"`
}

// Store is the storage handle passed explicitly to the engine. All
// operations honor context cancellation at the storage-call boundary.
type Store interface {
	// CollectionExists probes the registry for a collection id.
	CollectionExists(ctx context.Context, cdcID string) (bool, error)

	// InsertCollection persists a new registry record. Fails with
	// ErrExists if the id is taken.
	InsertCollection(ctx context.Context, col Collection) error

	// GetCollection fetches a registry record or ErrNotFound.
	GetCollection(ctx context.Context, cdcID string) (*Collection, error)

	// InsertDocument writes a document at its given revision.
	InsertDocument(ctx context.Context, doc ClinicalDocument) error

	// ReplaceDocument atomically replaces the document at the key iff its
	// stored revision equals expectedRev; the stored revision becomes
	// expectedRev+1 with a fresh timestamp. Key absent or revision
	// mismatch is ErrNotFound.
	ReplaceDocument(ctx context.Context, cdcID, patientID, classifier string, expectedRev int, newDoc interface{}) (*ClinicalDocument, error)

	// QueryBySubject returns all documents for one subject in a
	// collection, unordered.
	QueryBySubject(ctx context.Context, cdcID, patientID string) ([]ClinicalDocument, error)

	// QueryByClassifier returns all documents of one classifier in a
	// collection, unordered.
	QueryByClassifier(ctx context.Context, cdcID, classifier string) ([]ClinicalDocument, error)

	Close() error
}

// Timestamp formats a write time the way the wire protocol expects.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Now returns the current wire-format timestamp.
func Now() string {
	return Timestamp(time.Now())
}

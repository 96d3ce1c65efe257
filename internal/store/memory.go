package store

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-memory Store with the same semantics as the Couchbase
// one. It backs the tests and the STORE_BACKEND=memory server mode.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]Collection
	documents   map[string]ClinicalDocument
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]Collection),
		documents:   make(map[string]ClinicalDocument),
	}
}

func (s *Memory) CollectionExists(ctx context.Context, cdcID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[cdcID]
	return ok, nil
}

func (s *Memory) InsertCollection(ctx context.Context, rec Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[rec.CdcID]; ok {
		return fmt.Errorf("collection %s: %w", rec.CdcID, ErrExists)
	}
	s.collections[rec.CdcID] = rec
	return nil
}

func (s *Memory) GetCollection(ctx context.Context, cdcID string) (*Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.collections[cdcID]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", cdcID, ErrNotFound)
	}
	return &rec, nil
}

func (s *Memory) InsertDocument(ctx context.Context, doc ClinicalDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[documentKey(doc.CdcID, doc.PatientID, doc.Classifier)] = doc
	return nil
}

// ReplaceDocument checks the stored revision and swaps the document under
// one lock acquisition, so the compare and the write are a single atomic
// step here too.
func (s *Memory) ReplaceDocument(ctx context.Context, cdcID, patientID, classifier string, expectedRev int, newDoc interface{}) (*ClinicalDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := documentKey(cdcID, patientID, classifier)
	cur, ok := s.documents[key]
	if !ok || cur.RevID != expectedRev {
		return nil, fmt.Errorf("document %s at revision %d: %w", key, expectedRev, ErrNotFound)
	}

	next := ClinicalDocument{
		CdcID:      cdcID,
		PatientID:  patientID,
		Classifier: classifier,
		RevID:      expectedRev + 1,
		Doc:        newDoc,
		TimeStamp:  Now(),
	}
	s.documents[key] = next
	return &next, nil
}

func (s *Memory) QueryBySubject(ctx context.Context, cdcID, patientID string) ([]ClinicalDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []ClinicalDocument
	for _, doc := range s.documents {
		if doc.CdcID == cdcID && doc.PatientID == patientID {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (s *Memory) QueryByClassifier(ctx context.Context, cdcID, classifier string) ([]ClinicalDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []ClinicalDocument
	for _, doc := range s.documents {
		if doc.CdcID == cdcID && doc.Classifier == classifier {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (s *Memory) Close() error {
	return nil
}

// Package cdc is the document-store engine: the collection registry,
// the revision-checked document writes, the load importer and the
// per-patient summary aggregation.
package cdc

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/firecdc/internal/identity"
	"stealthcompany.com/firecdc/internal/metrics"
	"stealthcompany.com/firecdc/internal/store"
)

// Service wires the registry, importer and aggregators against a Store.
type Service struct {
	store store.Store

	// newSuffix generates the random part of a collection id. Swappable
	// so tests can force collisions.
	newSuffix func() string
}

// New creates a Service over the given store.
func New(st store.Store) *Service {
	return &Service{
		store:     st,
		newSuffix: func() string { return uuid.NewString()[:8] },
	}
}

// Exists reports whether a collection is registered.
func (s *Service) Exists(ctx context.Context, cdcID string) (bool, error) {
	return s.store.CollectionExists(ctx, cdcID)
}

// PatientEntry is one row of a patient listing.
type PatientEntry struct {
	Subject string            `json:"subject"`
	Desc    identity.Identity `json:"desc"`
}

// ListPatients lists every patient-classifier document in a collection,
// described through the collection's identity strategy. A collection with
// no patient documents yields an empty list.
func (s *Service) ListPatients(ctx context.Context, cdcID string) ([]PatientEntry, error) {
	col, err := s.store.GetCollection(ctx, cdcID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	spec := identity.Default()
	if col.Identity != nil {
		spec = *col.Identity
	}

	docs, err := s.store.QueryByClassifier(ctx, cdcID, "patient")
	if err != nil {
		return nil, err
	}

	entries := make([]PatientEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, PatientEntry{
			Subject: doc.PatientID,
			Desc:    identity.Apply(spec, doc.Doc),
		})
	}

	log.Debug().
		Str("cdc_id", cdcID).
		Int("patients", len(entries)).
		Msg("Listed patients")
	return entries, nil
}

// Replace applies an optimistic-concurrency update to one document. The
// caller's revision must exactly match the stored one; on success the
// stored revision is advanced by one.
func (s *Service) Replace(ctx context.Context, cdcID, subject, classifier string, revision int, doc interface{}) (*store.ClinicalDocument, error) {
	updated, err := s.store.ReplaceDocument(ctx, cdcID, subject, classifier, revision, doc)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.RecordDocumentReplace("not_found")
			return nil, ErrNotFound
		}
		metrics.RecordDocumentReplace("storage_error")
		return nil, err
	}

	metrics.RecordDocumentReplace("success")
	log.Info().
		Str("cdc_id", cdcID).
		Str("subject", subject).
		Str("classifier", classifier).
		Int("revision", updated.RevID).
		Msg("Document replaced")
	return updated, nil
}

package cdc

import (
	"context"
	"math"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/firecdc/internal/identity"
	"stealthcompany.com/firecdc/internal/store"
)

// Load is an externally supplied record batch plus the identity strategy
// persisted with the collection for its lifetime.
type Load struct {
	Records  []Record       `json:"records"`
	Identity *identity.Spec `json:"identity"`
}

// Record is one raw load record. The schema is minimal and
// forward-compatible: unrecognized fields are tolerated.
type Record map[string]interface{}

// validateRecords checks every record independently and returns the
// indices of all malformed ones. It never short-circuits, so the caller
// can report precisely which inputs were bad.
func validateRecords(records []Record) []int {
	var bad []int
	for i, rec := range records {
		if !validateRecord(rec) {
			bad = append(bad, i)
		}
	}
	return bad
}

// validateRecord requires a doc payload, a string patientId, a string
// classifier and a non-negative integral revId.
func validateRecord(rec Record) bool {
	if rec == nil || rec["doc"] == nil {
		return false
	}
	if _, ok := rec["patientId"].(string); !ok {
		return false
	}
	if _, ok := rec["classifier"].(string); !ok {
		return false
	}
	rev, ok := rec["revId"].(float64)
	if !ok || rev < 0 || rev != math.Trunc(rev) {
		return false
	}
	return true
}

// importRecords stamps the valid records with the collection id and the
// current time and writes them one by one. Bad indices were established
// up front; the batch is not transactional and a storage failure leaves
// the earlier writes in place.
func (s *Service) importRecords(ctx context.Context, cdcID string, records []Record, badIndices []int) (int, error) {
	bad := make(map[int]bool, len(badIndices))
	for _, i := range badIndices {
		bad[i] = true
	}

	inserted := 0
	now := store.Now()
	for i, rec := range records {
		if bad[i] {
			continue
		}
		doc := store.ClinicalDocument{
			CdcID:      cdcID,
			PatientID:  rec["patientId"].(string),
			Classifier: rec["classifier"].(string),
			RevID:      int(rec["revId"].(float64)),
			Doc:        rec["doc"],
			TimeStamp:  now,
		}
		if err := s.store.InsertDocument(ctx, doc); err != nil {
			log.Error().
				Err(err).
				Str("cdc_id", cdcID).
				Int("record", i).
				Msg("Failed to insert load record")
			return inserted, err
		}
		inserted++
	}

	log.Info().
		Str("cdc_id", cdcID).
		Int("total", len(records)).
		Int("inserted", inserted).
		Int("rejected", len(badIndices)).
		Msg("Load records imported")
	return inserted, nil
}

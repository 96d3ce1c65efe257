package cdc

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/firecdc/internal/identity"
	"stealthcompany.com/firecdc/internal/metrics"
	"stealthcompany.com/firecdc/internal/store"
)

// idAttempts bounds the collection-id generation loop. The existence
// probe and the later insert are separate operations, so a collision can
// still slip in between; the insert is atomic and a duplicate key just
// burns one attempt.
const idAttempts = 10

var prefixPattern = regexp.MustCompile(`^[0-9a-zA-Z]{3,8}$`)

// CreateResult reports a collection creation, including how the bulk load
// went when one was supplied.
type CreateResult struct {
	CdcID      string
	TimeStamp  string
	Inserted   int
	BadIndices []int
}

// Create registers a new collection under a generated id and, when a load
// set is supplied, imports its records. The registry write always precedes
// the document inserts. Rejected record indices are reported in the
// result, not thrown; the valid subset is still imported.
func (s *Service) Create(ctx context.Context, prefix string, load *Load) (*CreateResult, error) {
	if !prefixPattern.MatchString(prefix) {
		metrics.RecordCdcCreate("invalid_prefix")
		return nil, &ValidationError{Field: "prefix", Reason: "must be alphanumeric, length 3-8"}
	}

	var spec *identity.Spec
	var records []Record
	var badIndices []int
	if load != nil {
		if load.Records == nil {
			metrics.RecordCdcCreate("invalid_load")
			return nil, &ValidationError{Field: "load", Reason: "missing records array"}
		}
		if load.Identity == nil {
			metrics.RecordCdcCreate("invalid_load")
			return nil, &ValidationError{Field: "load", Reason: "missing identity strategy"}
		}
		resolved, err := identity.Resolve(*load.Identity)
		if err != nil {
			metrics.RecordCdcCreate("invalid_load")
			return nil, &ValidationError{Field: "load", Reason: "identity strategy: " + err.Error()}
		}
		spec = &resolved
		records = load.Records
		badIndices = validateRecords(records)
	}

	rec := store.Collection{Identity: spec}
	var inserted bool
	for attempt := 0; attempt < idAttempts && !inserted; attempt++ {
		id := prefix + "-" + s.newSuffix()
		exists, err := s.store.CollectionExists(ctx, id)
		if err != nil {
			metrics.RecordCdcCreate("storage_error")
			return nil, err
		}
		if exists {
			continue
		}

		rec.CdcID = id
		rec.TimeStamp = store.Now()
		err = s.store.InsertCollection(ctx, rec)
		if errors.Is(err, store.ErrExists) {
			// Lost the probe-then-insert race; try a fresh id.
			continue
		}
		if err != nil {
			metrics.RecordCdcCreate("storage_error")
			return nil, err
		}
		inserted = true
	}
	if !inserted {
		log.Warn().
			Str("prefix", prefix).
			Int("attempts", idAttempts).
			Msg("Collection id generation exhausted")
		metrics.RecordCdcCreate("exhausted")
		return nil, ErrIDExhausted
	}

	result := &CreateResult{
		CdcID:      rec.CdcID,
		TimeStamp:  rec.TimeStamp,
		BadIndices: badIndices,
	}

	if len(records) > 0 {
		start := time.Now()
		imported, err := s.importRecords(ctx, rec.CdcID, records, badIndices)
		if err != nil {
			metrics.RecordLoadImport(start, "failed", len(records), imported, len(badIndices))
			metrics.RecordCdcCreate("storage_error")
			return nil, err
		}
		result.Inserted = imported
		metrics.RecordLoadImport(start, "success", len(records), imported, len(badIndices))
	}

	metrics.RecordCdcCreate("success")
	log.Info().
		Str("cdc_id", rec.CdcID).
		Int("inserted", result.Inserted).
		Int("rejected", len(result.BadIndices)).
		Msg("Collection created")
	return result, nil
}

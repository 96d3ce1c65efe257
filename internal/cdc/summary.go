package cdc

import (
	"context"
	"errors"
	"strconv"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/firecdc/internal/store"
)

// Summary is a per-patient digest with one slot per classifier. If a
// subject holds several documents of one classifier, the last one seen
// wins the slot.
type Summary struct {
	Patient     *SummarySlot `json:"patient,omitempty"`
	Encounters  *SummarySlot `json:"encounters,omitempty"`
	Conditions  *SummarySlot `json:"conditions,omitempty"`
	Medications *SummarySlot `json:"medications,omitempty"`
}

// SummarySlot carries one document in the wire shape of the summary
// response. Revision is a string on the wire.
type SummarySlot struct {
	Classifier string      `json:"classifier"`
	Subject    string      `json:"subject"`
	Revision   string      `json:"revision"`
	Doc        interface{} `json:"doc"`
	TimeStamp  string      `json:"timeStamp"`
}

// HasPatient reports whether the summary identifies a known subject. The
// boundary layer treats a summary without a patient slot as an unknown
// subject.
func (s *Summary) HasPatient() bool {
	return s != nil && s.Patient != nil
}

// Summarize groups all of a subject's documents in a collection by
// classifier. Unknown classifiers are logged and skipped.
func (s *Service) Summarize(ctx context.Context, cdcID, subject string) (*Summary, error) {
	if exists, err := s.Exists(ctx, cdcID); err != nil {
		return nil, err
	} else if !exists {
		return nil, ErrNotFound
	}

	docs, err := s.store.QueryBySubject(ctx, cdcID, subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	summary := &Summary{}
	for _, doc := range docs {
		slot := &SummarySlot{
			Classifier: doc.Classifier,
			Subject:    doc.PatientID,
			Revision:   strconv.Itoa(doc.RevID),
			Doc:        doc.Doc,
			TimeStamp:  doc.TimeStamp,
		}
		switch doc.Classifier {
		case "patient":
			summary.Patient = slot
		case "encounter":
			summary.Encounters = slot
		case "condition":
			summary.Conditions = slot
		case "medication":
			summary.Medications = slot
		default:
			log.Warn().
				Str("cdc_id", cdcID).
				Str("subject", subject).
				Str("classifier", doc.Classifier).
				Msg("Unexpected classifier in summary")
		}
	}
	return summary, nil
}

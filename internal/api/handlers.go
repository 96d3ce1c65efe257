package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/firecdc/internal/cdc"
)

// Server holds the handlers for the fire wire protocol.
type Server struct {
	svc *cdc.Service
}

// NewServer creates a Server over the given engine.
func NewServer(svc *cdc.Service) *Server {
	return &Server{svc: svc}
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, text string) {
	respond(w, status, errorResponse{
		Ver:  protocolVersion,
		Code: code,
		Text: text,
	})
}

// ListPatients handles GET /fire/{cdcId}/patient/list.json
func (s *Server) ListPatients(w http.ResponseWriter, r *http.Request) {
	cdcID := mux.Vars(r)["cdcId"]

	list, err := s.svc.ListPatients(r.Context(), cdcID)
	if errors.Is(err, cdc.ErrNotFound) {
		respondError(w, http.StatusBadRequest, codeUnknownCdc, "unknown collection or ver missing")
		return
	}
	if err != nil {
		log.Error().
			Err(err).
			Str("cdc_id", cdcID).
			Msg("Error retrieving patient list")
		respondError(w, http.StatusInternalServerError, codeListUnavailable, "resources unavailable")
		return
	}

	respond(w, http.StatusOK, listResponse{
		Ver:   protocolVersion,
		CdcID: cdcID,
		List:  list,
	})
}

// PatientSummary handles GET /fire/{cdcId}/patient/summary.json?id={subject}
func (s *Server) PatientSummary(w http.ResponseWriter, r *http.Request) {
	cdcID := mux.Vars(r)["cdcId"]
	subject := r.URL.Query().Get("id")

	summary, err := s.svc.Summarize(r.Context(), cdcID, subject)
	if errors.Is(err, cdc.ErrNotFound) {
		respondError(w, http.StatusBadRequest, codeUnknownSubject, "invalid request: unknown collection/subject id")
		return
	}
	if err != nil {
		log.Error().
			Err(err).
			Str("cdc_id", cdcID).
			Str("subject", subject).
			Msg("Error building patient summary")
		respondError(w, http.StatusInternalServerError, codeSummaryFailed, "necessary resources unavailable")
		return
	}
	if !summary.HasPatient() {
		respondError(w, http.StatusBadRequest, codeUnknownSubject, "invalid request: unknown collection/subject id")
		return
	}

	respond(w, http.StatusOK, summaryResponse{
		Ver:        protocolVersion,
		CdcID:      cdcID,
		Classifier: "summary",
		Summary:    summary,
	})
}

// CreateCdc handles POST /fire/cdc.json
func (s *Server) CreateCdc(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to decode create request")
		respondError(w, http.StatusBadRequest, codeInvalidPrefix, "valid version/cdcId prefix missing")
		return
	}
	if req.Ver == "" || req.CdcID == "" {
		respondError(w, http.StatusBadRequest, codeInvalidPrefix, "valid version/cdcId prefix missing")
		return
	}

	result, err := s.svc.Create(r.Context(), req.CdcID, req.Load)
	if err != nil {
		var verr *cdc.ValidationError
		switch {
		case errors.As(err, &verr):
			if verr.Field == "prefix" {
				respondError(w, http.StatusBadRequest, codeInvalidPrefix, "valid version/cdcId prefix missing")
			} else {
				respondError(w, http.StatusBadRequest, codeInvalidLoad, "load parameter invalid")
			}
		case errors.Is(err, cdc.ErrIDExhausted):
			respondError(w, http.StatusInternalServerError, codeCreateFailed, "resources unavailable")
		default:
			log.Error().Err(err).Msg("Error creating collection")
			respondError(w, http.StatusInternalServerError, codeCreateFailed, "resources unavailable")
		}
		return
	}

	if len(result.BadIndices) > 0 {
		badErr := &cdc.BadRecordsError{Indices: result.BadIndices}
		respondError(w, http.StatusBadRequest, codeBadLoadRecords, badErr.Error())
		return
	}

	respond(w, http.StatusOK, createResponse{
		Ver:       protocolVersion,
		CdcID:     result.CdcID,
		TimeStamp: result.TimeStamp,
	})
}

// UpdateDocument handles PUT /fire/{cdcId}/patient/{classifier}.json
func (s *Server) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cdcID := vars["cdcId"]
	classifier := vars["classifier"]

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to decode update request")
		respondError(w, http.StatusBadRequest, codeInvalidUpdate, "invalid request: unknown collection/subject/revision")
		return
	}

	revision, ok := parseRevision(req.Revision)
	if req.Subject == "" || req.Ver == "" || !ok || emptyDoc(req.Doc) {
		respondError(w, http.StatusBadRequest, codeInvalidUpdate, "invalid request: unknown collection/subject/revision")
		return
	}

	updated, err := s.svc.Replace(r.Context(), cdcID, req.Subject, classifier, revision, req.Doc)
	if errors.Is(err, cdc.ErrNotFound) {
		respondError(w, http.StatusBadRequest, codeInvalidUpdate, "invalid request: unknown collection/subject/revision")
		return
	}
	if err != nil {
		log.Error().
			Err(err).
			Str("cdc_id", cdcID).
			Str("subject", req.Subject).
			Str("classifier", classifier).
			Msg("Error updating clinical document")
		respondError(w, http.StatusInternalServerError, codeUpdateFailed, "necessary resources unavailable")
		return
	}

	respond(w, http.StatusOK, updateResponse{
		Ver:        protocolVersion,
		CdcID:      cdcID,
		Classifier: classifier,
		Subject:    req.Subject,
		Revision:   fmt.Sprintf("%d", updated.RevID),
		TimeStamp:  updated.TimeStamp,
	})
}

// Health handles GET /health
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

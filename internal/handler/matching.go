package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/blood-connect/internal/model"
	"github.com/sakif/blood-connect/internal/service"
)

// MatchingHandler serves the donor search and match confirmation.
type MatchingHandler struct {
	svc    *service.MatchingService
	logger *slog.Logger
}

// NewMatchingHandler creates a MatchingHandler.
func NewMatchingHandler(svc *service.MatchingService, logger *slog.Logger) *MatchingHandler {
	return &MatchingHandler{svc: svc, logger: logger}
}

// HandleEligibleDonors lists available donors for a blood type and city.
//
// HTTP: GET /api/donors/eligible?bloodType=O%2B&city=Metropolis
//
// "+" in a query string decodes to a space, so clients must send O+ as O%2B.
// An empty result is 200 with [].
func (h *MatchingHandler) HandleEligibleDonors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	donors, err := h.svc.ListEligibleDonors(r.Context(), model.BloodType(q.Get("bloodType")), q.Get("city"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, donors)
}

// createMatchRequest is the body of POST /api/matches.
type createMatchRequest struct {
	DonorID   string `json:"donorId"`
	PatientID string `json:"patientId"`
}

// HandleCreateMatch confirms a donor for a patient.
//
// HTTP: POST /api/matches
// REQUEST BODY: {"donorId": "...", "patientId": "..."}
// RESPONSE: 201 with the match (status "completed")
func (h *MatchingHandler) HandleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	match, err := h.svc.CreateMatch(r.Context(), req.DonorID, req.PatientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, match)
}

package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/blood-connect/internal/export"
	"github.com/sakif/blood-connect/internal/model"
	"github.com/sakif/blood-connect/internal/service"
)

// AdminHandler serves the admin console API.
//
// Every route here sits behind RequireAuth + RequireRole(admin) in
// server.go, so the handlers never check permissions themselves.
type AdminHandler struct {
	admin    *service.AdminService
	matching *service.MatchingService
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(admin *service.AdminService, matching *service.MatchingService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, matching: matching, logger: logger}
}

// HandleDashboard returns all lists and counts for the console.
//
// HTTP: GET /api/admin/dashboard
func (h *AdminHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.admin.Dashboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

// HandleListMatches returns every match with both participants.
//
// HTTP: GET /api/admin/matches
func (h *AdminHandler) HandleListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := h.matching.ListMatches(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

// HandleListRegistrations returns the NGO or hospital applications.
//
// HTTP: GET /api/admin/registrations/{kind}   kind = ngo | hospital
func (h *AdminHandler) HandleListRegistrations(w http.ResponseWriter, r *http.Request) {
	kind, err := service.ParsePartnerKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return
	}

	var list any
	switch kind {
	case model.PartnerNgo:
		list, err = h.admin.ListNgoRegistrations(r.Context())
	case model.PartnerHospital:
		list, err = h.admin.ListHospitalRegistrations(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// updateStatusRequest is the body of the status PATCH.
type updateStatusRequest struct {
	Status model.RegistrationStatus `json:"status"`
}

// HandleUpdateRegistrationStatus records a review decision.
//
// HTTP: PATCH /api/admin/registrations/{kind}/{id}
// REQUEST BODY: {"status": "approved"}
func (h *AdminHandler) HandleUpdateRegistrationStatus(w http.ResponseWriter, r *http.Request) {
	kind, err := service.ParsePartnerKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.admin.SetRegistrationStatus(r.Context(), kind, id, req.Status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(req.Status)})
}

// HandleExportRegistrations downloads the applications as an XLSX workbook.
//
// HTTP: GET /api/admin/registrations/{kind}/export
//
// Content-Disposition: attachment makes the browser save the file instead of
// trying to display it.
func (h *AdminHandler) HandleExportRegistrations(w http.ResponseWriter, r *http.Request) {
	kind, err := service.ParsePartnerKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return
	}

	data, filename, err := h.admin.ExportRegistrations(r.Context(), kind)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("export download interrupted", slog.String("error", err.Error()))
	}
}

// HandleMarkPatientMatched moves a pending request to matched.
//
// HTTP: POST /api/admin/patients/{id}/matched
func (h *AdminHandler) HandleMarkPatientMatched(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.matching.MarkPatientMatched(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "requestStatus": string(model.RequestMatched)})
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/blood-connect/internal/service"
)

// RegistrationHandler exposes the four public sign-up forms.
//
// Each handler does the same three things: decode the body into the
// service's input struct, call the service, and answer 201 with the created
// record. Validation lives in the service, so the handlers stay this small.
type RegistrationHandler struct {
	svc    *service.RegistrationService
	logger *slog.Logger
}

// NewRegistrationHandler creates a RegistrationHandler.
func NewRegistrationHandler(svc *service.RegistrationService, logger *slog.Logger) *RegistrationHandler {
	return &RegistrationHandler{svc: svc, logger: logger}
}

// HandleRegisterDonor creates a donor account.
//
// HTTP: POST /api/donors
// REQUEST BODY: {"name","email","phone","city","bloodType","password"}
// RESPONSE: 201 with the donor and its user (no password hash)
func (h *RegistrationHandler) HandleRegisterDonor(w http.ResponseWriter, r *http.Request) {
	var in service.DonorRegistration
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	donor, err := h.svc.RegisterDonor(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, donor)
}

// HandleRegisterPatient files a blood request.
//
// HTTP: POST /api/patients
// REQUEST BODY: {"name","email","phone","city","bloodType","urgency","password",
// "requestorRole","organizationName"}
//
// The response carries the patient ID, which the frontend passes on to the
// donor search so the match can be confirmed against this request.
func (h *RegistrationHandler) HandleRegisterPatient(w http.ResponseWriter, r *http.Request) {
	var in service.PatientRegistration
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	patient, err := h.svc.RegisterPatient(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, patient)
}

// HandleRegisterNgo stores an NGO application.
//
// HTTP: POST /api/partners/ngo
func (h *RegistrationHandler) HandleRegisterNgo(w http.ResponseWriter, r *http.Request) {
	var in service.NgoApplication
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	reg, err := h.svc.RegisterNgo(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// HandleRegisterHospital stores a hospital application.
//
// HTTP: POST /api/partners/hospital
func (h *RegistrationHandler) HandleRegisterHospital(w http.ResponseWriter, r *http.Request) {
	var in service.HospitalApplication
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	reg, err := h.svc.RegisterHospital(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

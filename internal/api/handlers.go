// Package api provides HTTP handlers for FormVoice endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/guidedforms/FormVoice/internal/form"
	"github.com/guidedforms/FormVoice/internal/i18n"
	"github.com/guidedforms/FormVoice/internal/models"
	"github.com/guidedforms/FormVoice/internal/store"
)

// sessionView is the JSON shape returned for session state queries.
type sessionView struct {
	SessionID  string               `json:"session_id"`
	State      models.DialogueState `json:"state"`
	GuidedDone bool                 `json:"guided_done"`
	Draft      models.Draft         `json:"draft"`
}

func viewOf(sess *session) sessionView {
	return sessionView{
		SessionID:  sess.orch.SessionID(),
		State:      sess.orch.State(),
		GuidedDone: sess.orch.GuidedDone(),
		Draft:      sess.orch.Snapshot(),
	}
}

func (s *Server) saveTemplateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var tmpl models.FormTemplate
	if err := json.NewDecoder(r.Body).Decode(&tmpl); err != nil {
		slog.Warn("Server.saveTemplateHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := s.store.SaveTemplate(tmpl); err != nil {
		slog.Warn("Server.saveTemplateHandler: template rejected", "error", err, "template_id", tmpl.ID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	slog.Info("Server.saveTemplateHandler: template saved", "template_id", tmpl.ID)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Template saved", map[string]string{"template_id": tmpl.ID}))
}

func (s *Server) getTemplateHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	tmpl, err := s.store.GetTemplate(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Template not found"))
			return
		}
		slog.Error("Server.getTemplateHandler: store failure", "error", err, "template_id", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load template"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(tmpl))
}

// createSessionRequest is the payload for starting a guided session.
type createSessionRequest struct {
	TemplateID string `json:"template_id"`
	ProfileID  string `json:"profile_id,omitempty"`
	Language   string `json:"language,omitempty"`
	Voice      bool   `json:"voice,omitempty"`
	DraftID    string `json:"draft_id,omitempty"`
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createSessionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.TemplateID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("template_id is required"))
		return
	}

	sess, err := s.newSession(req.TemplateID, req.ProfileID, i18n.Language(req.Language), req.Voice, req.DraftID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error(err.Error()))
			return
		}
		slog.Error("Server.createSessionHandler: session creation failed", "error", err, "template_id", req.TemplateID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create session"))
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.Success(viewOf(sess)))
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(r.PathValue("id"))
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(viewOf(sess)))
}

func (s *Server) endSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.removeSession(id) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session ended", nil))
}

// utteranceRequest carries a typed user message.
type utteranceRequest struct {
	Text string `json:"text"`
}

func (s *Server) messageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	sess, ok := s.lookupSession(r.PathValue("id"))
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	var req utteranceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Text == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("text is required"))
		return
	}
	sess.orch.HandleUtterance(req.Text)
	writeJSONResponse(w, http.StatusOK, models.Success(viewOf(sess)))
}

// quickReplyRequest carries a tapped quick-reply option.
type quickReplyRequest struct {
	Label string `json:"label"`
	Value string `json:"value,omitempty"`
}

func (s *Server) quickReplyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	sess, ok := s.lookupSession(r.PathValue("id"))
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	var req quickReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Label == "" && req.Value == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("label or value is required"))
		return
	}
	sess.orch.HandleQuickReply(req.Label, req.Value)
	writeJSONResponse(w, http.StatusOK, models.Success(viewOf(sess)))
}

func (s *Server) clickFieldHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(r.PathValue("id"))
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	if err := sess.orch.ClickField(r.PathValue("fieldID")); err != nil {
		if errors.Is(err, models.ErrUnknownField) {
			writeJSONResponse(w, http.StatusNotFound, models.Error(err.Error()))
			return
		}
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(viewOf(sess)))
}

func (s *Server) editFieldHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	sess, ok := s.lookupSession(r.PathValue("id"))
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	var req utteranceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := sess.orch.EditField(r.PathValue("fieldID"), req.Text); err != nil {
		if errors.Is(err, models.ErrUnknownField) {
			writeJSONResponse(w, http.StatusNotFound, models.Error(err.Error()))
			return
		}
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(viewOf(sess)))
}

func (s *Server) skipHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(r.PathValue("id"))
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	sess.orch.Skip()
	writeJSONResponse(w, http.StatusOK, models.Success(viewOf(sess)))
}

func (s *Server) pauseHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(r.PathValue("id"))
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	sess.orch.Pause()
	writeJSONResponse(w, http.StatusOK, models.Success(viewOf(sess)))
}

func (s *Server) resumeHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(r.PathValue("id"))
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	sess.orch.Resume()
	writeJSONResponse(w, http.StatusOK, models.Success(viewOf(sess)))
}

// voiceRequest toggles voice mode for a session.
type voiceRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) voiceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	sess, ok := s.lookupSession(r.PathValue("id"))
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	var req voiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	sess.orch.SetVoiceEnabled(req.Enabled)
	writeJSONResponse(w, http.StatusOK, models.Success(viewOf(sess)))
}

func (s *Server) repeatHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(r.PathValue("id"))
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	sess.orch.Repeat()
	writeJSONResponse(w, http.StatusOK, models.Success(viewOf(sess)))
}

func (s *Server) rephraseHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(r.PathValue("id"))
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	sess.orch.Rephrase()
	writeJSONResponse(w, http.StatusOK, models.Success(viewOf(sess)))
}

// languageRequest switches a session's dialogue language.
type languageRequest struct {
	Language string `json:"language"`
}

func (s *Server) languageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	sess, ok := s.lookupSession(r.PathValue("id"))
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	var req languageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Language == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("language is required"))
		return
	}
	sess.orch.SetLanguage(i18n.Language(req.Language))
	writeJSONResponse(w, http.StatusOK, models.Success(viewOf(sess)))
}

// submitResult is the JSON shape returned by the submit endpoint.
type submitResult struct {
	SubmissionID string                 `json:"submission_id,omitempty"`
	Validation   []form.ValidationError `json:"validation,omitempty"`
}

func (s *Server) submitHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(r.PathValue("id"))
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	id, validationErrs, err := sess.orch.Submit()
	if err != nil {
		slog.Error("Server.submitHandler: submission failed", "error", err, "session_id", sess.orch.SessionID())
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Submission failed, draft retained"))
		return
	}
	if len(validationErrs) > 0 {
		writeJSONResponse(w, http.StatusUnprocessableEntity, models.APIResponse{
			Status:  models.APIStatusError,
			Message: "Validation failed",
			Result:  submitResult{Validation: validationErrs},
		})
		return
	}
	slog.Info("Server.submitHandler: submission created", "submission_id", id, "session_id", sess.orch.SessionID())
	writeJSONResponse(w, http.StatusOK, models.Success(submitResult{SubmissionID: id}))
}

func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(r.PathValue("id"))
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"summary.txt\"")
	if _, err := w.Write([]byte(sess.orch.SummaryText())); err != nil {
		slog.Error("Server.summaryHandler: failed to write summary", "error", err)
	}
}

func (s *Server) getSubmissionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sub, err := s.store.GetSubmission(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Submission not found"))
			return
		}
		slog.Error("Server.getSubmissionHandler: store failure", "error", err, "submission_id", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load submission"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sub))
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cyberpolicy/cracklab/internal/cracks/model"
	"github.com/cyberpolicy/cracklab/internal/cracks/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// submitter is the part of SubmitService the HTTP layer needs.
type submitter interface {
	Submit(ctx context.Context, challengeID, candidate string) (*service.Outcome, error)
}

// SubmitHandler serves POST /cracks/submit.
type SubmitHandler struct {
	svc    submitter
	logger *zap.Logger
}

// NewSubmitHandler creates a new SubmitHandler.
func NewSubmitHandler(svc submitter, logger *zap.Logger) *SubmitHandler {
	return &SubmitHandler{svc: svc, logger: logger}
}

// Register registers the submission route on the given router group.
func (h *SubmitHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/cracks/submit", h.Submit)
}

type submitResponse struct {
	OK           bool   `json:"ok"`
	AcceptedAt   string `json:"accepted_at"`
	FirstSuccess bool   `json:"first_success"`
	ReceiptID    string `json:"receipt_id"`
}

// Submit handles POST /cracks/submit: checks a candidate answer.
func (h *SubmitHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RecordSubmission(OutcomeBadRequest)
			writeError(c, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		// Anything else that is not a JSON object reads as missing fields.
		req = submitRequest{}
	}
	challengeID, candidate := req.fields()

	out, err := h.svc.Submit(c.Request.Context(), challengeID, candidate)
	switch {
	case errors.Is(err, service.ErrMissingField), errors.Is(err, service.ErrCandidateTooLong):
		RecordSubmission(OutcomeBadRequest)
		writeError(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, service.ErrChallengeNotFound):
		RecordSubmission(OutcomeNotFound)
		writeError(c, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, service.ErrChallengeMisconfigured):
		RecordSubmission(OutcomeMisconfigured)
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	case err != nil:
		RecordSubmission(OutcomeError)
		h.logger.Error("submit candidate", zap.String("challenge_id", challengeID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}

	if out.Verdict != service.VerdictAccepted {
		RecordSubmission(OutcomeMismatch)
		c.JSON(http.StatusOK, gin.H{"ok": false, "message": "Not correct"})
		return
	}

	if out.FirstSuccess {
		RecordSubmission(OutcomeAcceptedFirst)
	} else {
		RecordSubmission(OutcomeAcceptedRepeat)
	}
	c.JSON(http.StatusOK, newSubmitResponse(out.Record, out.FirstSuccess))
}

func newSubmitResponse(rec *model.SubmissionRecord, first bool) submitResponse {
	return submitResponse{
		OK:           true,
		AcceptedAt:   rec.AcceptedAt.UTC().Format(service.AcceptedAtLayout),
		FirstSuccess: first,
		ReceiptID:    rec.ReceiptID,
	}
}

// submitRequest keeps both fields raw so that a non-string value reads as
// missing instead of failing the whole bind.
type submitRequest struct {
	ChallengeID json.RawMessage `json:"challenge_id"`
	Candidate   json.RawMessage `json:"candidate"`
}

func (r *submitRequest) fields() (challengeID, candidate string) {
	return rawString(r.ChallengeID), rawString(r.Candidate)
}

// rawString returns raw decoded as a JSON string, or "" for any other value.
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"ok": false, "error": msg})
}

// NotFound answers unmatched routes and methods.
func NotFound(c *gin.Context) {
	writeError(c, http.StatusNotFound, "not found")
}

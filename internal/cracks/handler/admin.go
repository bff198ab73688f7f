package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cyberpolicy/cracklab/internal/cracks/model"
	"github.com/cyberpolicy/cracklab/internal/cracks/service"
	"github.com/cyberpolicy/cracklab/internal/identity"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type challengeProvisioner interface {
	CreateChallenge(ctx context.Context, req service.ProvisionRequest) (*model.Challenge, error)
}

type submissionLookup interface {
	GetSubmission(ctx context.Context, studentID, assignmentID string) (*model.SubmissionRecord, error)
}

// AdminHandler serves the operator API: admin token exchange, challenge
// provisioning and submission lookup.
type AdminHandler struct {
	secret      string // empty disables token exchange
	tokens      *identity.AdminTokenIssuer
	provision   challengeProvisioner
	submissions submissionLookup
	logger      *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(secret string, tokens *identity.AdminTokenIssuer, provision challengeProvisioner, submissions submissionLookup, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		secret:      secret,
		tokens:      tokens,
		provision:   provision,
		submissions: submissions,
		logger:      logger,
	}
}

// Register registers the token exchange on rg and the protected admin
// routes under rg/admin.
func (h *AdminHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/admin/token", h.IssueToken)

	admin := rg.Group("/admin", identity.RequireAdmin(h.tokens))
	{
		admin.POST("/challenges", h.CreateChallenge)
		admin.GET("/submissions", h.GetSubmission)
	}
}

// IssueToken handles POST /admin/token: exchanges the static admin secret
// for a short-lived admin JWT.
func (h *AdminHandler) IssueToken(c *gin.Context) {
	if h.secret == "" {
		NotFound(c)
		return
	}
	var req struct {
		Secret string `json:"secret"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Secret == "" {
		writeError(c, http.StatusBadRequest, "secret is required")
		return
	}
	if !identity.SecretMatches(req.Secret, h.secret) {
		h.logger.Warn("admin token exchange rejected", zap.String("client_ip", c.ClientIP()))
		writeError(c, http.StatusUnauthorized, "invalid admin secret")
		return
	}

	token, err := h.tokens.Issue()
	if err != nil {
		h.logger.Error("issue admin token", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_in": int(h.tokens.TTL().Seconds()),
	})
}

type createChallengeRequest struct {
	ChallengeID  string `json:"challenge_id"`
	StudentID    string `json:"student_id"`
	AssignmentID string `json:"assignment_id"`
	Answer       string `json:"answer"`
}

// CreateChallenge handles POST /admin/challenges: provisions a challenge.
func (h *AdminHandler) CreateChallenge(c *gin.Context) {
	var req createChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	ch, err := h.provision.CreateChallenge(c.Request.Context(), service.ProvisionRequest{
		ID:           req.ChallengeID,
		StudentID:    req.StudentID,
		AssignmentID: req.AssignmentID,
		Answer:       req.Answer,
	})
	switch {
	case errors.Is(err, service.ErrInvalidChallenge):
		writeError(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, service.ErrChallengeExists):
		writeError(c, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("create challenge", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusCreated, ch)
}

// GetSubmission handles GET /admin/submissions?student_id=&assignment_id=.
func (h *AdminHandler) GetSubmission(c *gin.Context) {
	studentID := strings.TrimSpace(c.Query("student_id"))
	assignmentID := strings.TrimSpace(c.Query("assignment_id"))
	if studentID == "" || assignmentID == "" {
		writeError(c, http.StatusBadRequest, "student_id and assignment_id are required")
		return
	}

	rec, err := h.submissions.GetSubmission(c.Request.Context(), studentID, assignmentID)
	if errors.Is(err, service.ErrSubmissionNotFound) {
		writeError(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("get submission", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "submission": rec})
}

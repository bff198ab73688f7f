package decrypt

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var crackDecryptReportsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "crack_decrypt_reports_total",
	Help: "Total decrypt reports recorded.",
})

// Handler serves the decrypt-report routes.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a new decrypt Handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register registers the public report link on the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/decrypt/submit", h.Submit)
}

// RegisterAdmin registers the report listing on an admin-protected group.
func (h *Handler) RegisterAdmin(admin *gin.RouterGroup) {
	admin.GET("/decrypt/reports", h.ListReports)
}

// Submit handles GET /decrypt/submit?guid=: records one report.
func (h *Handler) Submit(c *gin.Context) {
	_, err := h.svc.Record(c.Request.Context(), c.Query("guid"), c.ClientIP())
	if errors.Is(err, ErrMissingGUID) {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Missing guid"})
		return
	}
	if err != nil {
		h.logger.Error("record decrypt report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Database error"})
		return
	}
	crackDecryptReportsTotal.Inc()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ListReports handles GET /admin/decrypt/reports.
func (h *Handler) ListReports(c *gin.Context) {
	reports, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list decrypt reports", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Database error"})
		return
	}
	if reports == nil {
		reports = []*Report{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "reports": reports, "count": len(reports)})
}

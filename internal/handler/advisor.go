package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"cashback-advisor/internal/advisor"
	"cashback-advisor/internal/domain"
	"cashback-advisor/internal/ingest"

	"github.com/gin-gonic/gin"
)

// Advisor — то, что нужно хендлерам от advisor.Service.
type Advisor interface {
	Recommend(ctx context.Context, userID int64, month string, txs []domain.BankTransaction) (*domain.Recommendation, error)
	Latest(ctx context.Context, userID int64, month string) (*domain.Recommendation, error)
	Confirm(ctx context.Context, userID int64, month string, choices []domain.ConfirmedChoice) (*domain.Confirmation, error)
	Attribute(ctx context.Context, userID int64, month string, txs []domain.BankTransaction) (map[string][]domain.TransactionVerdict, error)
}

var _ Advisor = (*advisor.Service)(nil)

type AdvisorHandler struct {
	advisor Advisor
}

func NewAdvisorHandler(a Advisor) *AdvisorHandler {
	return &AdvisorHandler{advisor: a}
}

func writeAdvisorError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidCatalog), errors.Is(err, advisor.ErrNothingToConfirm):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

func transactions(c *gin.Context, req TransactionsRequest) ([]domain.BankTransaction, bool) {
	txs, err := ingest.ParseOpenBanking(req.Transactions, req.Bank)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return txs, true
}

// Recommend godoc
// @Summary Forecast spend and pick cashback categories for a month
// @Accept json
// @Produce json
// @Param request body TransactionsRequest true "Month and transaction history"
// @Success 200 {object} domain.Recommendation
// @Failure 404 {object} map[string]string "no catalog for the month"
// @Router /api/v1/recommendations [post]
func (h *AdvisorHandler) Recommend(c *gin.Context) {
	var req TransactionsRequest
	if !bindJSON(c, &req) {
		return
	}
	uid, ok := userID(c)
	if !ok {
		return
	}
	txs, ok := transactions(c, req)
	if !ok {
		return
	}

	rec, err := h.advisor.Recommend(c.Request.Context(), uid, req.Month, txs)
	if err != nil {
		slog.Error("Recommend failed", "error", err, "user_id", uid, "month", req.Month)
		writeAdvisorError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Latest godoc
// @Summary Get the stored recommendation for a month
// @Param month query string true "Month in YYYY-MM format"
// @Success 200 {object} domain.Recommendation
// @Failure 404 {object} map[string]string
// @Router /api/v1/recommendations [get]
func (h *AdvisorHandler) Latest(c *gin.Context) {
	month, ok := monthQuery(c)
	if !ok {
		return
	}
	uid, ok := userID(c)
	if !ok {
		return
	}

	rec, err := h.advisor.Latest(c.Request.Context(), uid, month)
	if err != nil {
		writeAdvisorError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Confirm godoc
// @Summary Confirm activated cashback categories
// @Description Without choices the chosen rows of the stored recommendation are confirmed
// @Param request body ConfirmRequest true "Choices"
// @Success 200 {object} domain.Confirmation
// @Router /api/v1/confirmations [post]
func (h *AdvisorHandler) Confirm(c *gin.Context) {
	var req ConfirmRequest
	if !bindJSON(c, &req) {
		return
	}
	uid, ok := userID(c)
	if !ok {
		return
	}

	conf, err := h.advisor.Confirm(c.Request.Context(), uid, req.Month, req.toDomain())
	if err != nil {
		slog.Error("Confirm failed", "error", err, "user_id", uid, "month", req.Month)
		writeAdvisorError(c, err)
		return
	}
	c.JSON(http.StatusOK, conf)
}

// Attribute godoc
// @Summary Check the month's transactions against confirmed choices
// @Param request body TransactionsRequest true "Month and transactions"
// @Success 200 {object} map[string][]domain.TransactionVerdict
// @Router /api/v1/attributions [post]
func (h *AdvisorHandler) Attribute(c *gin.Context) {
	var req TransactionsRequest
	if !bindJSON(c, &req) {
		return
	}
	uid, ok := userID(c)
	if !ok {
		return
	}
	txs, ok := transactions(c, req)
	if !ok {
		return
	}

	verdicts, err := h.advisor.Attribute(c.Request.Context(), uid, req.Month, txs)
	if err != nil {
		slog.Error("Attribute failed", "error", err, "user_id", uid, "month", req.Month)
		writeAdvisorError(c, err)
		return
	}
	c.JSON(http.StatusOK, verdicts)
}

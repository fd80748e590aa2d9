// internal/handler/cashback.go
package handler

import (
	"cashback-advisor/internal/domain"
	"cashback-advisor/internal/middleware"
	"cashback-advisor/internal/storage"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type CombinedStorage interface {
	storage.CashbackStorage
	storage.BankStorage
	storage.CategoryStorage
}

type CashbackHandler struct {
	store CombinedStorage
}

func NewCashbackHandler(store CombinedStorage) *CashbackHandler {
	return &CashbackHandler{store: store}
}

// userID достаёт user_id, положенный AuthMiddleware.
func userID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "user_id missing"})
		return 0, false
	}
	id, ok := v.(int64)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "invalid user_id"})
		return 0, false
	}
	return id, true
}

// monthQuery читает ?month=YYYY-MM.
func monthQuery(c *gin.Context) (string, bool) {
	month := c.Query("month")
	if _, err := domain.ParseMonth(month); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "month query param required in YYYY-MM format"})
		return "", false
	}
	return month, true
}

// bindJSON разбирает и валидирует тело запроса.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return false
	}
	if err := validateStruct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// writeStoreError: ErrNotFound → 404, нарушение каталога → 400, остальное → 500.
func writeStoreError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidCatalog):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// SaveMonth godoc
// @Summary Save cashback catalog for a month
// @Description Replace banks, their limits and cashback categories for a given month
// @Tags cashback
// @Accept json
// @Produce json
// @Param request body SaveMonthRequest true "Month data"
// @Success 200 {object} map[string]string{"status":"ok"}
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/month [post]
func (h *CashbackHandler) SaveMonth(c *gin.Context) {
	var req SaveMonthRequest
	if !bindJSON(c, &req) {
		return
	}
	uid, ok := userID(c)
	if !ok {
		return
	}

	if err := h.store.SaveMonth(c.Request.Context(), uid, req.Month, req.toDomain()); err != nil {
		slog.Error("Failed to save month", "error", err, "user_id", uid, "month", req.Month)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slog.Info("Month saved successfully", "user_id", uid, "month", req.Month, "banks", len(req.Banks))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetMonth godoc
// @Summary Get cashback catalog for a month
// @Param month query string true "Month in YYYY-MM format"
// @Success 200 {object} domain.CashbackMonth
// @Failure 400 {object} map[string]string
// @Router /api/v1/month [get]
func (h *CashbackHandler) GetMonth(c *gin.Context) {
	month, ok := monthQuery(c)
	if !ok {
		return
	}
	uid, ok := userID(c)
	if !ok {
		return
	}

	result, err := h.store.GetMonth(c.Request.Context(), uid, month)
	if err != nil {
		slog.Error("GetMonth failed", "error", err, "user_id", uid, "month", month)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	if result == nil {
		c.JSON(http.StatusOK, domain.CashbackMonth{Month: month, Banks: []domain.BankWithCategories{}})
		return
	}
	c.JSON(http.StatusOK, result)
}

// SearchByCategory godoc
// @Summary Search banks by category name
// @Param month query string true "Month in YYYY-MM format"
// @Param q query string true "Category name"
// @Success 200 {array} domain.Bank
// @Router /api/v1/search/category [get]
func (h *CashbackHandler) SearchByCategory(c *gin.Context) {
	month, ok := monthQuery(c)
	if !ok {
		return
	}
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q query param required"})
		return
	}
	uid, ok := userID(c)
	if !ok {
		return
	}

	banks, err := h.store.SearchByCategory(c.Request.Context(), uid, month, query)
	if err != nil {
		slog.Error("SearchByCategory failed", "error", err, "user_id", uid, "month", month, "category", query)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	if banks == nil {
		banks = []domain.Bank{}
	}
	c.JSON(http.StatusOK, banks)
}

// SearchByBank godoc
// @Summary Search categories by bank name
// @Param month query string true "Month in YYYY-MM format"
// @Param q query string true "Bank name"
// @Success 200 {array} domain.Category
// @Router /api/v1/search/bank [get]
func (h *CashbackHandler) SearchByBank(c *gin.Context) {
	month, ok := monthQuery(c)
	if !ok {
		return
	}
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q query param required"})
		return
	}
	uid, ok := userID(c)
	if !ok {
		return
	}

	categories, err := h.store.SearchByBank(c.Request.Context(), uid, month, query)
	if err != nil {
		slog.Error("SearchByBank failed", "error", err, "user_id", uid, "month", month, "bank", query)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	c.JSON(http.StatusOK, categories)
}

// UpdateBankCategories godoc
// @Summary Replace categories of a bank in a month
// @Param month query string true "Month in YYYY-MM format"
// @Param bank query string true "Bank name"
// @Param request body UpdateCategoriesRequest true "New categories"
// @Success 200 {object} map[string]string{"status":"ok"}
// @Failure 404 {object} map[string]string
// @Router /api/v1/month/bank [put]
func (h *CashbackHandler) UpdateBankCategories(c *gin.Context) {
	month, ok := monthQuery(c)
	if !ok {
		return
	}
	bankName := c.Query("bank")
	if bankName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bank query param required"})
		return
	}
	var req UpdateCategoriesRequest
	if !bindJSON(c, &req) {
		return
	}
	uid, ok := userID(c)
	if !ok {
		return
	}

	err := h.store.UpdateBankCategories(c.Request.Context(), uid, month, bankName, categoriesToDomain(req.Categories))
	if err != nil {
		slog.Error("UpdateBankCategories failed", "error", err, "user_id", uid, "month", month, "bank", bankName)
		writeStoreError(c, err, "Failed to update")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// PatchMonth godoc
// @Summary Partially update cashback for a month (add/update banks/categories)
// @Description Add or update banks and categories without removing others
// @Tags cashback
// @Accept json
// @Produce json
// @Param request body SaveMonthRequest true "Month data"
// @Success 200 {object} map[string]string{"status":"ok"}
// @Router /api/v1/month [patch]
func (h *CashbackHandler) PatchMonth(c *gin.Context) {
	var req SaveMonthRequest
	if !bindJSON(c, &req) {
		return
	}
	uid, ok := userID(c)
	if !ok {
		return
	}

	if err := h.store.PatchMonth(c.Request.Context(), uid, req.Month, req.toDomain()); err != nil {
		slog.Error("Failed to patch month", "error", err, "user_id", uid, "month", req.Month)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slog.Info("Month patched successfully", "user_id", uid, "month", req.Month)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DeleteBankFromMonth godoc
// @Summary Delete a bank from a month
// @Param month query string true "Month in YYYY-MM format"
// @Param bank query string true "Bank name"
// @Success 200 {object} map[string]string{"status":"ok"}
// @Router /api/v1/month/bank [delete]
func (h *CashbackHandler) DeleteBankFromMonth(c *gin.Context) {
	month, ok := monthQuery(c)
	if !ok {
		return
	}
	bankName := c.Query("bank")
	if bankName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bank query param required"})
		return
	}
	uid, ok := userID(c)
	if !ok {
		return
	}

	if err := h.store.DeleteBankFromMonth(c.Request.Context(), uid, month, bankName); err != nil {
		slog.Error("DeleteBankFromMonth failed", "error", err, "user_id", uid, "month", month, "bank", bankName)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DeleteCategoryFromBank godoc
// @Summary Delete a category from a bank in a month
// @Param month query string true "Month in YYYY-MM format"
// @Param bank query string true "Bank name"
// @Param category query string true "Category name"
// @Success 200 {object} map[string]string{"status":"ok"}
// @Failure 404 {object} map[string]string
// @Router /api/v1/month/bank/category [delete]
func (h *CashbackHandler) DeleteCategoryFromBank(c *gin.Context) {
	month, ok := monthQuery(c)
	if !ok {
		return
	}
	bankName := c.Query("bank")
	categoryName := c.Query("category")
	if bankName == "" || categoryName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bank and category query params required"})
		return
	}
	uid, ok := userID(c)
	if !ok {
		return
	}

	if err := h.store.DeleteCategoryFromBank(c.Request.Context(), uid, month, bankName, categoryName); err != nil {
		slog.Error("DeleteCategoryFromBank failed", "error", err, "user_id", uid, "month", month, "bank", bankName, "category", categoryName)
		writeStoreError(c, err, "Internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/response"
	"github.com/stemsi/mocktest-backend/internal/service"
)

// TestHandler serves the test catalog.
type TestHandler struct {
	catalog service.Catalog
	log     zerolog.Logger
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(catalog service.Catalog, log zerolog.Logger) *TestHandler {
	return &TestHandler{
		catalog: catalog,
		log:     log.With().Str("component", "test_handler").Logger(),
	}
}

// ListTests godoc
// GET /api/v1/tests
// Returns the active tests.
func (h *TestHandler) ListTests(c *gin.Context) {
	tests, err := h.catalog.ListActive(c.Request.Context())
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	if tests == nil {
		tests = []model.Test{}
	}
	response.Success(c, http.StatusOK, gin.H{"tests": tests})
}

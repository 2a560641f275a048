package reporting

import (
	"errors"
	"net/http"

	httperr "github.com/farmlink-lab/farm-insights/internal/core/errors"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all reporting API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/reports", s.HandleListReports)
	r.GET("/v1/reports/:report_id", s.HandleGenerateReport)
}

// HandleListReports handles GET /v1/reports
func (s *Service) HandleListReports(c *gin.Context) {
	c.JSON(http.StatusOK, DefinitionsResponse{Reports: s.Definitions()})
}

// HandleGenerateReport handles GET /v1/reports/:report_id
// Query parameters: from, to, farm_id, product_id
func (s *Service) HandleGenerateReport(c *gin.Context) {
	var req ReportRequest

	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "Invalid path parameters",
			Details:   err.Error(),
		})
		return
	}

	// Bind query parameters (from, to, farm_id, product_id)
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}

	resp, err := s.Generate(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
				ErrorType: httperr.HttpInvalidRequestError,
				Message:   "Invalid report request",
				Details:   err.Error(),
			})
		case errors.Is(err, ErrUnknownReport):
			c.JSON(http.StatusNotFound, httperr.ErrorResponse{
				ErrorType: httperr.HttpReportNotFoundError,
				Message:   "Report not found",
				Details:   err.Error(),
			})
		case errors.Is(err, ErrFarmNotFound):
			c.JSON(http.StatusNotFound, httperr.ErrorResponse{
				ErrorType: httperr.HttpFarmNotFoundError,
				Message:   "Farm not found",
				Details:   err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
				ErrorType: httperr.HttpInternalError,
				Message:   "Failed to generate report",
				Details:   err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

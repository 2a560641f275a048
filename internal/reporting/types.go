package reporting

import (
	"time"

	"github.com/farmlink-lab/farm-insights/internal/core/dataset"
	"github.com/farmlink-lab/farm-insights/internal/report"
)

// ReportRequest is one report generation request. Dates are "YYYY-MM-DD";
// a zero FarmID or ProductID means the filter is not set.
type ReportRequest struct {
	ReportID  string `uri:"report_id"`
	From      string `form:"from"`
	To        string `form:"to"`
	FarmID    int64  `form:"farm_id"`
	ProductID int64  `form:"product_id"`
}

// ReportResponse wraps a generated dataset with its run metadata.
type ReportResponse struct {
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Definition  report.Definition `json:"definition"`
	Dataset     dataset.Dataset   `json:"dataset"`
}

// DefinitionsResponse lists the reports the service can generate.
type DefinitionsResponse struct {
	Reports []report.Definition `json:"reports"`
}

package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jekmagalaman/gso/internal/gso/service"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ReportHandler serves WAR and IPMT reports and their Excel exports.
type ReportHandler struct {
	wars   *service.WARService
	ipmt   *service.IPMTService
	export *service.ExportService
	logger *zap.Logger
}

func NewReportHandler(wars *service.WARService, ipmt *service.IPMTService, export *service.ExportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{wars: wars, ipmt: ipmt, export: export, logger: logger}
}

func (h *ReportHandler) warFilter(c *gin.Context) (service.WARFilter, bool) {
	year, month, ok := getMonth(c)
	if !ok {
		return service.WARFilter{}, false
	}
	return service.WARFilter{
		UnitID:      c.Query("unit_id"),
		PersonnelID: c.Query("personnel_id"),
		IndicatorID: c.Query("indicator_id"),
		Year:        year,
		Month:       month,
	}, true
}

// ListWARs GET /wars?unit_id=&personnel_id=&indicator_id=&year=&month=
func (h *ReportHandler) ListWARs(c *gin.Context) {
	f, ok := h.warFilter(c)
	if !ok {
		return
	}
	items, err := h.wars.List(c.Request.Context(), GetActor(c), f)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// GetWAR GET /wars/:id
func (h *ReportHandler) GetWAR(c *gin.Context) {
	war, err := h.wars.Get(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, war)
}

// UpdateWAR PUT /wars/:id
func (h *ReportHandler) UpdateWAR(c *gin.Context) {
	var input service.UpdateWARInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	war, err := h.wars.Update(c.Request.Context(), GetActor(c), c.Param("id"), input)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, war)
}

// RegenerateWAR POST /wars/:id/regenerate
func (h *ReportHandler) RegenerateWAR(c *gin.Context) {
	war, err := h.wars.RegenerateDescription(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, war)
}

// ExportWAR GET /wars/export?unit_id=&year=&month=
func (h *ReportHandler) ExportWAR(c *gin.Context) {
	f, ok := h.warFilter(c)
	if !ok {
		return
	}
	file, filename, err := h.export.ExportWAR(c.Request.Context(), GetActor(c), f)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	h.writeWorkbook(c, file, filename)
}

// PreviewIPMT computes the IPMT tables without saving
// POST /ipmt/preview
func (h *ReportHandler) PreviewIPMT(c *gin.Context) {
	var input service.PreviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	preview, err := h.ipmt.Preview(c.Request.Context(), GetActor(c), input)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, preview)
}

// SaveIPMT POST /ipmt
func (h *ReportHandler) SaveIPMT(c *gin.Context) {
	var input service.SaveInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	entries, err := h.ipmt.Save(c.Request.Context(), GetActor(c), input)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": entries})
}

// ListIPMT GET /ipmt?unit_id=&personnel=&year=&month=
func (h *ReportHandler) ListIPMT(c *gin.Context) {
	year, month, ok := getMonth(c)
	if !ok {
		return
	}
	person, entries, err := h.ipmt.Entries(c.Request.Context(), GetActor(c), c.Query("unit_id"), c.Query("personnel"), year, month)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, gin.H{"personnel": person, "items": entries})
}

// RegenerateIPMT POST /ipmt/:id/regenerate
func (h *ReportHandler) RegenerateIPMT(c *gin.Context) {
	entry, err := h.ipmt.Regenerate(c.Request.Context(), GetActor(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, entry)
}

// ExportIPMT GET /ipmt/export?unit_id=&personnel=&year=&month=
func (h *ReportHandler) ExportIPMT(c *gin.Context) {
	year, month, ok := getMonth(c)
	if !ok {
		return
	}
	file, filename, err := h.export.ExportIPMT(c.Request.Context(), GetActor(c), c.Query("unit_id"), c.Query("personnel"), year, month)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	h.writeWorkbook(c, file, filename)
}

func (h *ReportHandler) writeWorkbook(c *gin.Context, f *excelize.File, filename string) {
	defer func() {
		if err := f.Close(); err != nil {
			h.logger.Warn("close workbook", zap.Error(err))
		}
	}()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		h.logger.Error("write workbook", zap.String("filename", filename), zap.Error(err))
	}
}

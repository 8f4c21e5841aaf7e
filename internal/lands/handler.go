package lands

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxImageSize    = 10 << 20
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Handler serves the listing API
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler creates a new lands handler
func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers listing routes
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	lands := router.Group("/lands")
	{
		lands.GET("/getAll", h.listLands)
		lands.GET("/getId/:id", h.getLand)
		lands.POST("/create", h.createLand)
		lands.DELETE("/:id", h.deleteLand)
		lands.POST("/:id/image", h.uploadImage)
		lands.GET("/:id/image", h.getImage)

		lands.GET("/export.xlsx", h.exportXLSX)
		lands.GET("/export.csv", h.exportCSV)
		lands.GET("/:id/sheet.pdf", h.listingSheet)
	}
}

// listLands handles GET /lands/getAll
func (h *Handler) listLands(c *gin.Context) {
	filter := LandFilter{Region: c.Query("region"), District: c.Query("district")}

	out, err := h.service.ListLands(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list lands", zap.Error(err))
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// getLand handles GET /lands/getId/:id
func (h *Handler) getLand(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	land, err := h.service.GetLand(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, land)
}

// createLand handles POST /lands/create
func (h *Handler) createLand(c *gin.Context) {
	var req CreateLandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	land, err := h.service.CreateLand(c.Request.Context(), req)
	if err != nil {
		h.logger.Warn("Failed to create land", zap.Error(err))
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, land)
}

// deleteLand handles DELETE /lands/:id
func (h *Handler) deleteLand(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteLand(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// uploadImage handles POST /lands/:id/image (multipart field "image")
func (h *Handler) uploadImage(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageSize)
	header, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	land, err := h.service.UploadImage(c.Request.Context(), id, header.Filename, file)
	if err != nil {
		h.logger.Error("Failed to upload land image", zap.Error(err), zap.String("land_id", id.String()))
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, land)
}

// getImage handles GET /lands/:id/image
func (h *Handler) getImage(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	body, contentType, err := h.service.OpenImage(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer body.Close()

	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, -1, contentType, body, nil)
}

// exportXLSX handles GET /lands/export.xlsx
func (h *Handler) exportXLSX(c *gin.Context) {
	filter := LandFilter{Region: c.Query("region"), District: c.Query("district")}

	var buf bytes.Buffer
	if err := h.service.ExportXLSX(c.Request.Context(), filter, &buf); err != nil {
		h.logger.Error("Failed to export lands", zap.Error(err))
		h.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="lands.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// exportCSV handles GET /lands/export.csv
func (h *Handler) exportCSV(c *gin.Context) {
	filter := LandFilter{Region: c.Query("region"), District: c.Query("district")}

	var buf bytes.Buffer
	if err := h.service.ExportCSV(c.Request.Context(), filter, &buf); err != nil {
		h.logger.Error("Failed to export lands", zap.Error(err))
		h.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="lands.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// listingSheet handles GET /lands/:id/sheet.pdf
func (h *Handler) listingSheet(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.service.ListingSheetPDF(c.Request.Context(), id, &buf); err != nil {
		h.logger.Error("Failed to render listing sheet", zap.Error(err), zap.String("land_id", id.String()))
		h.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (h *Handler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid land ID"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidListing):
		status = http.StatusBadRequest
	case errors.Is(err, ErrLandNotFound), errors.Is(err, ErrImageNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrNoImageStorage):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

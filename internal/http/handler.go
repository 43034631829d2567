package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deviation-service/internal/http/middleware"
	"deviation-service/internal/model"
	"deviation-service/internal/service"
	"deviation-service/internal/workflow"
)

type Handler struct {
	deviationService *service.DeviationService
	reportService    *service.ReportService
	log              zerolog.Logger
	env              string
}

func NewHandler(
	deviationService *service.DeviationService,
	reportService *service.ReportService,
	log zerolog.Logger,
	env string,
) *Handler {
	return &Handler{
		deviationService: deviationService,
		reportService:    reportService,
		log:              log,
		env:              env,
	}
}

func (h *Handler) listDeviations(c *gin.Context) {
	opts := parseListQuery(c)

	page, err := h.reportService.List(c.Request.Context(), opts)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, responseEnvelope{
		Success:    true,
		Data:       gin.H{"items": page.Items},
		Pagination: &page.Pagination,
		Stats:      &page.Stats,
	})
}

func (h *Handler) getDeviation(c *gin.Context) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid deviation id"))
		return
	}

	deviation, err := h.deviationService.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(deviation))
}

type vehiclePayload struct {
	Model         string `json:"model" binding:"required"`
	SerialNumber  string `json:"serial_number" binding:"required"`
	ChassisNumber string `json:"chassis_number"`
}

type attachmentPayload struct {
	Name        string `json:"name" binding:"required"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

func (h *Handler) createDeviation(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	var req struct {
		PartName           string              `json:"part_name" binding:"required"`
		PartNumber         string              `json:"part_number" binding:"required"`
		DeviationType      string              `json:"deviation_type" binding:"required"`
		QualityRisk        string              `json:"quality_risk"`
		Description        string              `json:"description" binding:"required"`
		ReasonForDeviation string              `json:"reason_for_deviation"`
		ProposedSolution   string              `json:"proposed_solution"`
		RequestDate        string              `json:"request_date" binding:"required"`
		RequestedBy        string              `json:"requested_by" binding:"required"`
		Department         string              `json:"department" binding:"required"`
		Vehicles           []vehiclePayload    `json:"vehicles"`
		Attachments        []attachmentPayload `json:"attachments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	requestDate, err := parseDate(req.RequestDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid request_date"))
		return
	}

	risk := model.QualityRisk(strings.TrimSpace(req.QualityRisk))
	if req.QualityRisk == "" {
		risk = model.QualityRiskLow
	}

	input := service.CreateDeviationInput{
		PartName:           req.PartName,
		PartNumber:         req.PartNumber,
		DeviationType:      model.DeviationType(strings.TrimSpace(req.DeviationType)),
		QualityRisk:        risk,
		Description:        req.Description,
		ReasonForDeviation: req.ReasonForDeviation,
		ProposedSolution:   req.ProposedSolution,
		RequestDate:        requestDate,
		RequestedBy:        req.RequestedBy,
		Department:         req.Department,
	}
	for _, v := range req.Vehicles {
		input.Vehicles = append(input.Vehicles, service.VehicleInput{
			Model:         v.Model,
			SerialNumber:  v.SerialNumber,
			ChassisNumber: v.ChassisNumber,
		})
	}
	for _, a := range req.Attachments {
		input.Attachments = append(input.Attachments, service.AttachmentInput{
			Name:        a.Name,
			ContentType: a.ContentType,
			Data:        a.Data,
		})
	}

	deviation, err := h.deviationService.Create(c.Request.Context(), principal, input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(deviation))
}

func (h *Handler) updateDeviation(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid deviation id"))
		return
	}

	var req struct {
		PartName           *string `json:"part_name"`
		PartNumber         *string `json:"part_number"`
		DeviationType      *string `json:"deviation_type"`
		QualityRisk        *string `json:"quality_risk"`
		Description        *string `json:"description"`
		ReasonForDeviation *string `json:"reason_for_deviation"`
		ProposedSolution   *string `json:"proposed_solution"`
		RequestDate        *string `json:"request_date"`
		Department         *string `json:"department"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	input := service.UpdateDeviationInput{
		PartName:           req.PartName,
		PartNumber:         req.PartNumber,
		Description:        req.Description,
		ReasonForDeviation: req.ReasonForDeviation,
		ProposedSolution:   req.ProposedSolution,
		Department:         req.Department,
	}
	if req.DeviationType != nil {
		t := model.DeviationType(strings.TrimSpace(*req.DeviationType))
		input.DeviationType = &t
	}
	if req.QualityRisk != nil {
		r := model.QualityRisk(strings.TrimSpace(*req.QualityRisk))
		input.QualityRisk = &r
	}
	if req.RequestDate != nil {
		ts, err := parseDate(*req.RequestDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid request_date"))
			return
		}
		input.RequestDate = &ts
	}

	deviation, err := h.deviationService.Update(c.Request.Context(), principal, id, input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(deviation))
}

func (h *Handler) deleteDeviation(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid deviation id"))
		return
	}

	if err := h.deviationService.Delete(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse("deviation deleted"))
}

func (h *Handler) approveDeviation(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid deviation id"))
		return
	}

	var req struct {
		ApprovalType string `json:"approvalType" binding:"required"`
		Comments     string `json:"comments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	deviation, err := h.deviationService.Approve(c.Request.Context(), principal, id, strings.TrimSpace(req.ApprovalType), req.Comments)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(deviation))
}

func (h *Handler) rejectDeviation(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid deviation id"))
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("rejection reason is required"))
		return
	}

	deviation, err := h.deviationService.Reject(c.Request.Context(), principal, id, req.Reason)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(deviation))
}

func (h *Handler) bulkUpdateStatus(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	var req struct {
		IDs    []string `json:"ids" binding:"required"`
		Status string   `json:"status" binding:"required"`
		Reason string   `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid deviation id "+raw))
			return
		}
		ids = append(ids, id)
	}

	modified, err := h.deviationService.BulkUpdateStatus(c.Request.Context(), principal, ids, strings.TrimSpace(req.Status), req.Reason)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"modified": modified}))
}

func (h *Handler) dashboard(c *gin.Context) {
	stats, err := h.reportService.Dashboard(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(stats))
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		msg := "internal error"
		if h.env == "development" {
			msg = err.Error()
		}
		c.JSON(http.StatusInternalServerError, errorResponse(msg))
	}
}

func parseListQuery(c *gin.Context) service.ListOptions {
	var opts service.ListOptions

	if statusParam := c.Query("status"); statusParam != "" {
		for _, val := range splitCSV(statusParam) {
			opts.Statuses = append(opts.Statuses, workflow.Status(val))
		}
	}
	if deptParam := c.Query("department"); deptParam != "" {
		opts.Departments = splitCSV(deptParam)
	}
	if typeParam := c.Query("deviation_type"); typeParam != "" {
		for _, val := range splitCSV(typeParam) {
			opts.Types = append(opts.Types, model.DeviationType(val))
		}
	}
	if riskParam := c.Query("quality_risk"); riskParam != "" {
		for _, val := range splitCSV(riskParam) {
			opts.Risks = append(opts.Risks, model.QualityRisk(val))
		}
	}
	if page := strings.TrimSpace(c.Query("page")); page != "" {
		if v, err := strconv.Atoi(page); err == nil {
			opts.Page = v
		}
	}
	if limit := strings.TrimSpace(c.Query("limit")); limit != "" {
		if v, err := strconv.Atoi(limit); err == nil {
			opts.Limit = v
		}
	}
	opts.Sort = strings.TrimSpace(c.Query("sort"))
	opts.Search = strings.TrimSpace(c.Query("search"))

	return opts
}

// parseDate accepts either a plain date or a full RFC3339 timestamp.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02", raw)
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

type responseEnvelope struct {
	Success    bool                `json:"success"`
	Data       interface{}         `json:"data,omitempty"`
	Message    string              `json:"message,omitempty"`
	Pagination *model.Pagination   `json:"pagination,omitempty"`
	Stats      *model.StatusCounts `json:"stats,omitempty"`
	Error      string              `json:"error,omitempty"`
}

func successResponse(data interface{}) responseEnvelope {
	return responseEnvelope{Success: true, Data: data}
}

func messageResponse(msg string) responseEnvelope {
	return responseEnvelope{Success: true, Message: msg}
}

func errorResponse(msg string) responseEnvelope {
	return responseEnvelope{Success: false, Error: msg}
}

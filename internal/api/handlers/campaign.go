package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/thrillee/bulksms/internal/api/handlers/dto"
	"github.com/thrillee/bulksms/internal/campaign"
	"github.com/thrillee/bulksms/internal/dispatch"
	"github.com/thrillee/bulksms/internal/logging"
	"github.com/thrillee/bulksms/internal/queue"
	"github.com/thrillee/bulksms/pkg/codes"
	"github.com/thrillee/bulksms/pkg/errormapper"
)

type CampaignHandler struct {
	service    *campaign.Service
	dispatcher *dispatch.Orchestrator
	jobs       queue.Enqueuer
}

// NewCampaignHandler creates the handler. jobs may be nil, in which case
// asynchronous sends are refused.
func NewCampaignHandler(s *campaign.Service, d *dispatch.Orchestrator, jobs queue.Enqueuer) *CampaignHandler {
	return &CampaignHandler{service: s, dispatcher: d, jobs: jobs}
}

func toDraft(r dto.CampaignRequest) campaign.Draft {
	return campaign.Draft{
		Name:        r.Name,
		Template:    r.MessageTemplate,
		Signature:   r.Signature,
		Type:        r.Type,
		ContactIDs:  r.ContactIDs,
		ScheduledAt: r.ScheduledAt,
	}
}

// campaignContext parses :id and decorates the request context.
func campaignContext(c *gin.Context, handler string) (context.Context, int64, bool) {
	logCtx := logging.ContextWithHandler(c.Request.Context(), handler)
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: errormapper.ErrorCodeValidationFailure, Error: "Invalid campaign id"})
		return logCtx, 0, false
	}
	return logging.ContextWithCampaignID(logCtx, id), id, true
}

// CreateCampaign handles POST /campaigns
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	logCtx := logging.ContextWithHandler(c.Request.Context(), "CreateCampaign")

	var req dto.CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: errormapper.ErrorCodeValidationFailure, Error: "Invalid request body: " + err.Error()})
		return
	}
	created, unknown, err := h.service.Create(logCtx, userID(c), toDraft(req))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.CampaignResponse{Campaign: created, UnknownPlaceholders: unknown})
}

// GetCampaign handles GET /campaigns/:id
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	logCtx, id, ok := campaignContext(c, "GetCampaign")
	if !ok {
		return
	}
	found, err := h.service.Get(logCtx, userID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CampaignResponse{Campaign: found})
}

// UpdateCampaign handles PUT /campaigns/:id
func (h *CampaignHandler) UpdateCampaign(c *gin.Context) {
	logCtx, id, ok := campaignContext(c, "UpdateCampaign")
	if !ok {
		return
	}
	var req dto.CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: errormapper.ErrorCodeValidationFailure, Error: "Invalid request body: " + err.Error()})
		return
	}
	if h.dispatcher.InFlight(id) {
		respondError(c, dispatch.ErrCampaignInFlight)
		return
	}
	updated, unknown, err := h.service.Update(logCtx, userID(c), id, toDraft(req))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CampaignResponse{Campaign: updated, UnknownPlaceholders: unknown})
}

// DuplicateCampaign handles POST /campaigns/:id/duplicate
func (h *CampaignHandler) DuplicateCampaign(c *gin.Context) {
	logCtx, id, ok := campaignContext(c, "DuplicateCampaign")
	if !ok {
		return
	}
	dup, err := h.service.Duplicate(logCtx, userID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.CampaignResponse{Campaign: dup})
}

// SendCampaign handles POST /campaigns/:id/send[?async=true]
func (h *CampaignHandler) SendCampaign(c *gin.Context) {
	logCtx, id, ok := campaignContext(c, "SendCampaign")
	if !ok {
		return
	}
	async, _ := strconv.ParseBool(c.Query("async"))

	if !async {
		// keep sending if the client goes away
		res, err := h.dispatcher.SendCampaign(context.WithoutCancel(logCtx), userID(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
		return
	}

	if h.jobs == nil {
		abortWithCode(c, errormapper.ErrorCodeQueueError, "asynchronous dispatch is not configured")
		return
	}
	existing, err := h.service.Get(logCtx, userID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !codes.IsDispatchable(existing.Status) || existing.DispatchStartedAt != nil {
		respondError(c, dispatch.ErrCampaignNotSendable)
		return
	}
	job := queue.NewCampaignJob(userID(c), id, "api")
	if err := h.jobs.Enqueue(logCtx, job); err != nil {
		slog.ErrorContext(logCtx, "Failed to enqueue campaign job", slog.Any("error", err))
		abortWithCode(c, errormapper.ErrorCodeQueueError, "failed to queue campaign")
		return
	}
	c.JSON(http.StatusAccepted, dto.QueuedResponse{Status: "queued", JobID: job.JobID, CampaignID: id})
}

// CancelCampaign handles POST /campaigns/:id/cancel
func (h *CampaignHandler) CancelCampaign(c *gin.Context) {
	logCtx, id, ok := campaignContext(c, "CancelCampaign")
	if !ok {
		return
	}
	if _, err := h.service.Get(logCtx, userID(c), id); err != nil {
		respondError(c, err)
		return
	}
	if !h.dispatcher.Cancel(id) {
		abortWithCode(c, errormapper.ErrorCodeCampaignNotSendable, "campaign is not being sent")
		return
	}
	slog.InfoContext(logCtx, "Campaign cancellation requested")
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling", "campaign_id": id})
}

// ListRecords handles GET /campaigns/:id/records
func (h *CampaignHandler) ListRecords(c *gin.Context) {
	logCtx, id, ok := campaignContext(c, "ListRecords")
	if !ok {
		return
	}
	limit, offset := parsePagination(c)
	records, err := h.service.Records(logCtx, userID(c), id, int(limit), int(offset))
	if err != nil {
		respondError(c, err)
		return
	}
	if records == nil {
		records = []campaign.DispatchRecord{}
	}
	c.JSON(http.StatusOK, dto.PaginatedListResponse{
		Data:       records,
		Pagination: dto.PaginationResponse{Limit: limit, Offset: offset, Count: len(records)},
	})
}

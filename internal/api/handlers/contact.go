package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thrillee/bulksms/internal/api/handlers/dto"
	"github.com/thrillee/bulksms/internal/campaign"
	"github.com/thrillee/bulksms/internal/logging"
	"github.com/thrillee/bulksms/pkg/errormapper"
)

type ContactHandler struct {
	service *campaign.Service
}

func NewContactHandler(s *campaign.Service) *ContactHandler {
	return &ContactHandler{service: s}
}

func toContact(userID string, r dto.ContactRequest, group string) campaign.Contact {
	if r.Group != "" {
		group = r.Group
	}
	return campaign.Contact{
		UserID:    userID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
		Group:     group,
		Fields:    r.Fields,
	}
}

// CreateContact handles POST /contacts
func (h *ContactHandler) CreateContact(c *gin.Context) {
	logCtx := logging.ContextWithHandler(c.Request.Context(), "CreateContact")

	var req dto.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: errormapper.ErrorCodeValidationFailure, Error: "Invalid request body: " + err.Error()})
		return
	}
	contact, err := h.service.CreateContact(logCtx, toContact(userID(c), req, ""))
	if err != nil {
		slog.WarnContext(logCtx, "Failed to create contact", slog.Any("error", err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contact)
}

// ImportContacts handles POST /contacts/import
func (h *ContactHandler) ImportContacts(c *gin.Context) {
	logCtx := logging.ContextWithHandler(c.Request.Context(), "ImportContacts")

	var req dto.ImportContactsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: errormapper.ErrorCodeValidationFailure, Error: "Invalid request body: " + err.Error()})
		return
	}
	rows := make([]campaign.Contact, len(req.Contacts))
	for i, r := range req.Contacts {
		rows[i] = toContact(userID(c), r, req.Group)
	}

	res, err := h.service.ImportContacts(logCtx, userID(c), rows)
	if err != nil {
		slog.ErrorContext(logCtx, "Failed to import contacts", slog.Any("error", err))
		respondError(c, err)
		return
	}
	ids := make([]int64, len(res.Created))
	for i, created := range res.Created {
		ids[i] = created.ID
	}
	rejected := res.Rejected
	if rejected == nil {
		rejected = []campaign.RejectedRow{}
	}
	c.JSON(http.StatusOK, dto.ImportContactsResponse{Created: len(res.Created), Rejected: rejected, IDs: ids})
}

// ListContacts handles GET /contacts?group=
func (h *ContactHandler) ListContacts(c *gin.Context) {
	logCtx := logging.ContextWithHandler(c.Request.Context(), "ListContacts")
	limit, offset := parsePagination(c)

	contacts, err := h.service.ListContacts(logCtx, userID(c), c.Query("group"), int(limit), int(offset))
	if err != nil {
		slog.ErrorContext(logCtx, "Failed to list contacts", slog.Any("error", err))
		respondError(c, err)
		return
	}
	if contacts == nil {
		contacts = []campaign.Contact{}
	}
	c.JSON(http.StatusOK, dto.PaginatedListResponse{
		Data:       contacts,
		Pagination: dto.PaginationResponse{Limit: limit, Offset: offset, Count: len(contacts)},
	})
}

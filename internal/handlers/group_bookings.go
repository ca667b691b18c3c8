package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/groupdesk/internal/models"
	"github.com/charlesng35/groupdesk/internal/services"
	"github.com/charlesng35/groupdesk/pkg/response"
)

// GroupBookingHandler exposes the booking lifecycle and admission operations.
type GroupBookingHandler struct {
	svc *services.GroupBookingService
}

// NewGroupBookingHandler constructs a GroupBookingHandler.
func NewGroupBookingHandler(svc *services.GroupBookingService) *GroupBookingHandler {
	return &GroupBookingHandler{svc: svc}
}

type createGroupBookingRequest struct {
	WorkspaceRef    string                `json:"workspace_ref" validate:"required,max=128"`
	GroupName       string                `json:"group_name" validate:"required,notblank,max=120"`
	Description     string                `json:"description" validate:"max=500"`
	RoomType        string                `json:"room_type" validate:"max=64"`
	Date            string                `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string                `json:"start_time" validate:"required,datetime=15:04"`
	EndTime         string                `json:"end_time" validate:"required,datetime=15:04,clockafter=StartTime"`
	MinParticipants int                   `json:"min_participants" validate:"min=1"`
	MaxParticipants int                   `json:"max_participants" validate:"min=1,gtefield=MinParticipants"`
	IsPublic        bool                  `json:"is_public"`
	Settings        *models.GroupSettings `json:"settings"`
	Tags            []string              `json:"tags" validate:"max=20,dive,max=40"`
}

type joinByCodeRequest struct {
	Code string `json:"code" validate:"required,invitecode"`
}

type cancelBookingRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// Create handles POST /api/group-bookings.
func (h *GroupBookingHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req createGroupBookingRequest
	if !bindAndValidate(c, &req) {
		return
	}

	booking, err := h.svc.Create(requestContext(c), actor.UserID, services.CreateGroupBookingRequest{
		WorkspaceRef:    req.WorkspaceRef,
		GroupName:       req.GroupName,
		Description:     req.Description,
		RoomType:        req.RoomType,
		Date:            req.Date,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		MinParticipants: req.MinParticipants,
		MaxParticipants: req.MaxParticipants,
		IsPublic:        req.IsPublic,
		Settings:        req.Settings,
		Tags:            req.Tags,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, booking)
}

// List handles GET /api/group-bookings and returns the caller's bookings.
func (h *GroupBookingHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	bookings, err := h.svc.ListForUser(requestContext(c), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, bookings, &response.Meta{Total: len(bookings)})
}

// Get handles GET /api/group-bookings/:id.
func (h *GroupBookingHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	booking, err := h.svc.Get(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, booking)
}

// Stats handles GET /api/group-bookings/:id/stats.
func (h *GroupBookingHandler) Stats(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	stats, err := h.svc.GetStats(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// Join handles POST /api/group-bookings/join.
func (h *GroupBookingHandler) Join(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req joinByCodeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.JoinByCode(requestContext(c), req.Code, actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeAdmission(c, result)
}

// Cancel handles POST /api/group-bookings/:id/cancel.
func (h *GroupBookingHandler) Cancel(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req cancelBookingRequest
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &req) {
		return
	}

	booking, err := h.svc.Cancel(requestContext(c), actor.UserID, c.Param("id"), strings.TrimSpace(req.Reason))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, booking)
}

// Leave handles POST /api/group-bookings/:id/leave.
func (h *GroupBookingHandler) Leave(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	if err := h.svc.Leave(requestContext(c), actor.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"left": true})
}

// Approve handles POST /api/group-bookings/:id/participants/:userID/approve.
func (h *GroupBookingHandler) Approve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	result, err := h.svc.ApproveParticipant(requestContext(c), actor.UserID, c.Param("id"), c.Param("userID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	writeAdmission(c, result)
}

// Reject handles POST /api/group-bookings/:id/participants/:userID/reject.
func (h *GroupBookingHandler) Reject(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	if err := h.svc.RejectParticipant(requestContext(c), actor.UserID, c.Param("id"), c.Param("userID")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"rejected": true})
}

// RemoveParticipant handles DELETE /api/group-bookings/:id/participants/:userID.
func (h *GroupBookingHandler) RemoveParticipant(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	if err := h.svc.RemoveParticipant(requestContext(c), actor.UserID, c.Param("id"), c.Param("userID")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"removed": true})
}

// writeAdmission renders an admission decision. Rejections carry the result as
// error details so clients can read the reason code.
func writeAdmission(c *gin.Context, result services.AdmissionResult) {
	switch result.Outcome {
	case services.AdmissionRejected:
		response.ErrorWithDetails(c, result.Err(), result)
	case services.AdmissionPending:
		response.Success(c, http.StatusAccepted, result)
	default:
		response.Success(c, http.StatusOK, result)
	}
}

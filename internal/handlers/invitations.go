package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/groupdesk/internal/services"
	"github.com/charlesng35/groupdesk/pkg/response"
)

// InvitationHandler exposes the invitation manager.
type InvitationHandler struct {
	svc *services.GroupBookingService
}

// NewInvitationHandler constructs an InvitationHandler.
func NewInvitationHandler(svc *services.GroupBookingService) *InvitationHandler {
	return &InvitationHandler{svc: svc}
}

type inviteRequest struct {
	Email           string `json:"email" validate:"omitempty,email,max=254"`
	UserID          string `json:"user_id" validate:"required_without=Email,max=128"`
	PersonalMessage string `json:"personal_message" validate:"max=500"`
}

type respondRequest struct {
	Response string `json:"response" validate:"required,oneof=accept decline"`
}

// Invite handles POST /api/group-bookings/:id/invitations.
func (h *InvitationHandler) Invite(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req inviteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	invitation, err := h.svc.Invite(requestContext(c), actor.UserID, c.Param("id"), services.InviteRequest{
		Email:           req.Email,
		UserID:          req.UserID,
		PersonalMessage: req.PersonalMessage,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, invitation)
}

// List handles GET /api/group-bookings/:id/invitations.
func (h *InvitationHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	invitations, err := h.svc.ListInvitations(requestContext(c), actor.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, invitations, &response.Meta{Total: len(invitations)})
}

// Respond handles POST /api/invitations/:id/respond.
func (h *InvitationHandler) Respond(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req respondRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.Respond(requestContext(c), actor, c.Param("id"), services.InviteResponse(req.Response))
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.Admission != nil && result.Admission.Outcome == services.AdmissionRejected {
		response.ErrorWithDetails(c, result.Admission.Err(), result)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Remind handles POST /api/invitations/:id/remind.
func (h *InvitationHandler) Remind(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	invitation, err := h.svc.SendReminder(requestContext(c), actor.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, invitation)
}

// Cancel handles DELETE /api/invitations/:id.
func (h *InvitationHandler) Cancel(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	invitation, err := h.svc.CancelInvitation(requestContext(c), actor.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, invitation)
}

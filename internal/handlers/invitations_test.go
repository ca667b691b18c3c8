package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/groupdesk/internal/handlers/testutil"
	"github.com/charlesng35/groupdesk/internal/models"
	"github.com/charlesng35/groupdesk/internal/services"
)

func invite(t *testing.T, env *testutil.Env, token, bookingID string, body map[string]string) models.Invitation {
	t.Helper()
	w := env.Request(http.MethodPost, "/api/group-bookings/"+bookingID+"/invitations", body, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var invitation models.Invitation
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &invitation)
	return invitation
}

func TestInviteAndAcceptByEmail(t *testing.T) {
	env := testutil.NewEnv(t)
	organizer := env.Token("organizer", "")
	booking := createBooking(t, env, organizer, createBookingPayload(1, 3))

	invitation := invite(t, env, organizer, booking.ID, map[string]string{
		"email":            "Dana@Example.com",
		"personal_message": "join us",
	})
	require.Equal(t, "dana@example.com", invitation.TargetEmail)
	require.Equal(t, models.InvitationPending, invitation.Status)

	// Only the addressed invitee may answer.
	w := env.Request(http.MethodPost, "/api/invitations/"+invitation.ID+"/respond", map[string]string{"response": "accept"}, env.Token("eve", "eve@example.com"))
	require.Equal(t, http.StatusForbidden, w.Code)

	dana := env.Token("dana", "dana@example.com")
	w = env.Request(http.MethodPost, "/api/invitations/"+invitation.ID+"/respond", map[string]string{"response": "maybe"}, dana)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Request(http.MethodPost, "/api/invitations/"+invitation.ID+"/respond", map[string]string{"response": "accept"}, dana)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result services.InvitationResult
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &result)
	require.Equal(t, models.InvitationAccepted, result.Invitation.Status)
	require.NotNil(t, result.Admission)
	require.Equal(t, services.AdmissionAccepted, result.Admission.Outcome)

	w = env.Request(http.MethodPost, "/api/invitations/"+invitation.ID+"/respond", map[string]string{"response": "decline"}, dana)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "INVITATION_ALREADY_RESOLVED", testutil.DecodeResponse(t, w).Error.Code)
}

func TestInviteValidationAndPermissions(t *testing.T) {
	env := testutil.NewEnv(t)
	organizer := env.Token("organizer", "")
	booking := createBooking(t, env, organizer, createBookingPayload(1, 3))

	w := env.Request(http.MethodPost, "/api/group-bookings/"+booking.ID+"/invitations", map[string]string{}, organizer)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, testutil.DecodeResponse(t, w).Error.Message, "user id is required")

	w = env.Request(http.MethodPost, "/api/group-bookings/"+booking.ID+"/invitations", map[string]string{"email": "not-an-email"}, organizer)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Request(http.MethodPost, "/api/group-bookings/"+booking.ID+"/invitations", map[string]string{"user_id": "frank"}, env.Token("stranger", ""))
	require.Equal(t, http.StatusForbidden, w.Code)

	invite(t, env, organizer, booking.ID, map[string]string{"user_id": "frank"})
	w = env.Request(http.MethodPost, "/api/group-bookings/"+booking.ID+"/invitations", map[string]string{"user_id": "frank"}, organizer)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "DUPLICATE_INVITATION", testutil.DecodeResponse(t, w).Error.Code)
}

func TestExpiredInvitationRespondsGone(t *testing.T) {
	env := testutil.NewEnv(t)
	organizer := env.Token("organizer", "")
	booking := createBooking(t, env, organizer, createBookingPayload(1, 3))
	invitation := invite(t, env, organizer, booking.ID, map[string]string{"user_id": "gina"})

	env.Now = env.Now.Add(73 * time.Hour)

	w := env.Request(http.MethodPost, "/api/invitations/"+invitation.ID+"/respond", map[string]string{"response": "accept"}, env.Token("gina", ""))
	require.Equal(t, http.StatusGone, w.Code, w.Body.String())
	require.Equal(t, "INVITATION_EXPIRED", testutil.DecodeResponse(t, w).Error.Code)
}

func TestRemindListAndCancelInvitation(t *testing.T) {
	env := testutil.NewEnv(t)
	organizer := env.Token("organizer", "")
	booking := createBooking(t, env, organizer, createBookingPayload(1, 3))
	invitation := invite(t, env, organizer, booking.ID, map[string]string{"user_id": "hank"})

	w := env.Request(http.MethodPost, "/api/invitations/"+invitation.ID+"/remind", nil, organizer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var reminded models.Invitation
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &reminded)
	require.Equal(t, 1, reminded.RemindersSent)

	w = env.Request(http.MethodGet, "/api/group-bookings/"+booking.ID+"/invitations", nil, organizer)
	require.Equal(t, http.StatusOK, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, 1, resp.Meta.Total)

	w = env.Request(http.MethodGet, "/api/group-bookings/"+booking.ID+"/invitations", nil, env.Token("hank", ""))
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.Request(http.MethodDelete, "/api/invitations/"+invitation.ID, nil, organizer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var cancelled models.Invitation
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &cancelled)
	require.Equal(t, models.InvitationCancelled, cancelled.Status)

	w = env.Request(http.MethodDelete, "/api/invitations/"+invitation.ID, nil, organizer)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestAcceptInvitationWhenFullWaitlists(t *testing.T) {
	env := testutil.NewEnv(t)
	organizer := env.Token("organizer", "")
	booking := createBooking(t, env, organizer, createBookingPayload(1, 1))
	invitation := invite(t, env, organizer, booking.ID, map[string]string{"user_id": "ivy"})

	env.Request(http.MethodPost, "/api/group-bookings/join", map[string]string{"code": booking.InviteCode}, env.Token("jack", ""))

	w := env.Request(http.MethodPost, "/api/invitations/"+invitation.ID+"/respond", map[string]string{"response": "accept"}, env.Token("ivy", ""))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result services.InvitationResult
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &result)
	require.Equal(t, services.AdmissionPending, result.Admission.Outcome)
	require.True(t, result.Admission.Waitlisted)
}

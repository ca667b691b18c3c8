package models

import (
	"testing"
	"time"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	if err := base.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if base.ID == "" {
		t.Fatal("expected base model ID to be generated")
	}

	id := base.ID
	if got := base.EnsureID(); got != id {
		t.Fatalf("expected existing id %q to be kept, got %q", id, got)
	}
}

func TestEmbeddedModelsUseBaseBeforeCreate(t *testing.T) {
	cases := []struct {
		name  string
		model func() *BaseModel
	}{
		{"group_booking", func() *BaseModel {
			b := &GroupBooking{}
			return &b.BaseModel
		}},
		{"participant", func() *BaseModel {
			p := &Participant{}
			return &p.BaseModel
		}},
		{"invitation", func() *BaseModel {
			i := &Invitation{}
			return &i.BaseModel
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := tc.model()
			if err := model.BeforeCreate(nil); err != nil {
				t.Fatalf("before create: %v", err)
			}
			if model.ID == "" {
				t.Fatal("expected ID to be generated")
			}
		})
	}
}

func TestGroupBookingStatusIsOpen(t *testing.T) {
	open := map[GroupBookingStatus]bool{
		GroupBookingPending:   true,
		GroupBookingConfirmed: true,
		GroupBookingCancelled: false,
		GroupBookingCompleted: false,
		GroupBookingNoShow:    false,
	}
	for status, want := range open {
		if got := status.IsOpen(); got != want {
			t.Fatalf("%s: expected IsOpen=%v, got %v", status, want, got)
		}
	}
}

func TestInvitationHelpers(t *testing.T) {
	byEmail := Invitation{TargetEmail: " Bob@Example.com "}
	if key := byEmail.TargetKey(); key != "email:bob@example.com" {
		t.Fatalf("unexpected email key %q", key)
	}
	byUser := Invitation{TargetUserID: "carol"}
	if key := byUser.TargetKey(); key != "user:carol" {
		t.Fatalf("unexpected user key %q", key)
	}

	deadline := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)
	inv := Invitation{ExpiresAt: deadline}
	if inv.IsExpiredAt(deadline) {
		t.Fatal("an invitation is still valid at its deadline")
	}
	if !inv.IsExpiredAt(deadline.Add(time.Second)) {
		t.Fatal("expected invitation to be expired after the deadline")
	}

	if InvitationPending.IsResolved() {
		t.Fatal("pending invitations are unresolved")
	}
	for _, status := range []InvitationStatus{InvitationAccepted, InvitationDeclined, InvitationExpired, InvitationCancelled} {
		if !status.IsResolved() {
			t.Fatalf("%s should be resolved", status)
		}
	}
}

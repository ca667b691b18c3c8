package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/groupdesk/internal/services"
)

// Location resolves the configured booking timezone.
func (c BookingConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("booking.timezone: %w", err)
	}
	return loc, nil
}

// ServiceOptions converts BookingConfig into GroupBookingService options. Zero
// values keep the service defaults.
func (c BookingConfig) ServiceOptions() ([]services.GroupBookingOption, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}

	var codeOpts []services.InviteCodeOption
	if c.InviteCodeLength > 0 {
		codeOpts = append(codeOpts, services.WithCodeLength(c.InviteCodeLength))
	}
	if c.InviteCodeAttempts > 0 {
		codeOpts = append(codeOpts, services.WithCodeAttempts(c.InviteCodeAttempts))
	}

	opts := []services.GroupBookingOption{
		services.WithLocation(loc),
		services.WithInviteCodeGenerator(services.NewInviteCodeGenerator(codeOpts...)),
	}
	if c.ParticipantCeiling > 0 {
		opts = append(opts, services.WithParticipantCeiling(c.ParticipantCeiling))
	}
	if c.InviteTTL > 0 {
		opts = append(opts, services.WithInviteTTL(c.InviteTTL))
	}
	if c.LockTimeout > 0 {
		opts = append(opts, services.WithLockTimeout(c.LockTimeout))
	}
	return opts, nil
}

package services

import (
	"context"
	"errors"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// InviteCodeAlphabet omits 0, O, 1 and I so codes survive being read aloud.
	InviteCodeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

	// MaxInviteCodeLength matches the invite_code column width.
	MaxInviteCodeLength = 16

	defaultInviteCodeLength   = 8
	defaultInviteCodeAttempts = 10
)

// CodeSource produces one candidate code of the requested length.
type CodeSource func(length int) (string, error)

// CodeExistsFunc reports whether a candidate code is already issued.
type CodeExistsFunc func(ctx context.Context, code string) (bool, error)

// InviteCodeOption customises an InviteCodeGenerator.
type InviteCodeOption func(*InviteCodeGenerator)

// WithCodeLength overrides the code length. Values outside 4..MaxInviteCodeLength are ignored.
func WithCodeLength(length int) InviteCodeOption {
	return func(g *InviteCodeGenerator) {
		if length >= 4 && length <= MaxInviteCodeLength {
			g.length = length
		}
	}
}

// WithCodeAttempts caps the number of candidates tried before giving up.
func WithCodeAttempts(attempts int) InviteCodeOption {
	return func(g *InviteCodeGenerator) {
		if attempts > 0 {
			g.attempts = attempts
		}
	}
}

// WithCodeSource swaps the random source, primarily for testing.
func WithCodeSource(source CodeSource) InviteCodeOption {
	return func(g *InviteCodeGenerator) {
		if source != nil {
			g.source = source
		}
	}
}

// InviteCodeGenerator issues short, unambiguous codes with a bounded collision retry.
type InviteCodeGenerator struct {
	length   int
	attempts int
	source   CodeSource
}

// NewInviteCodeGenerator constructs a generator backed by nanoid.
func NewInviteCodeGenerator(opts ...InviteCodeOption) *InviteCodeGenerator {
	g := &InviteCodeGenerator{
		length:   defaultInviteCodeLength,
		attempts: defaultInviteCodeAttempts,
		source:   nanoidSource,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the first candidate that exists reports as free. After the
// configured number of collisions it fails with ErrCodeSpaceExhausted.
func (g *InviteCodeGenerator) Generate(ctx context.Context, exists CodeExistsFunc) (string, error) {
	if exists == nil {
		return "", errors.New("invite code: existence check is required")
	}
	ctx = ensureContext(ctx)

	for attempt := 0; attempt < g.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code, err := g.source(g.length)
		if err != nil {
			return "", fmt.Errorf("invite code: generate: %w", err)
		}

		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("invite code: check existing: %w", err)
		}
		if !taken {
			return code, nil
		}
	}

	return "", ErrCodeSpaceExhausted
}

func nanoidSource(length int) (string, error) {
	return gonanoid.Generate(InviteCodeAlphabet, length)
}

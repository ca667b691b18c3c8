package services

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormaliseTags(t *testing.T) {
	require.Equal(t, []string{"planning", "q2-offsite"}, normaliseTags([]string{" Planning ", "Q2 Offsite", "planning", ""}))
}

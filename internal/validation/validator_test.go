// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundtally/soundtally/internal/models"
)

func TestValidateStructPass(t *testing.T) {
	candidate := models.PlayCandidate{
		SongID:    "song-1",
		Title:     "Title",
		Artist:    "Artist",
		Source:    models.SourceManual,
		Timestamp: time.Now(),
	}
	assert.Nil(t, ValidateStruct(&candidate))
}

func TestValidateStructMissingFields(t *testing.T) {
	candidate := models.PlayCandidate{Source: models.SourceManual}

	err := ValidateStruct(&candidate)
	require.NotNil(t, err)

	details := err.Details()
	assert.Contains(t, details, "SongID")
	assert.Contains(t, details, "Title")
	assert.Contains(t, details, "Artist")
	assert.Contains(t, err.Error(), "SongID is required")
}

func TestValidateStructMinMaxMessages(t *testing.T) {
	type request struct {
		Limit int    `validate:"gte=1,lte=100"`
		Name  string `validate:"min=3"`
	}

	err := ValidateStruct(&request{Limit: 500, Name: "ab"})
	require.NotNil(t, err)
	require.Len(t, err.Errors(), 2)
	assert.Contains(t, err.Error(), "Limit must be less than or equal to 100")
	assert.Contains(t, err.Error(), "Name must be at least 3 characters")
}

func TestGetValidatorIsSingleton(t *testing.T) {
	assert.Same(t, GetValidator(), GetValidator())
}

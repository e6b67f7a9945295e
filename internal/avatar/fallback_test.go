package avatar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iranverse/avatar-engine/internal/domain"
)

func testFallbackConfig() FallbackConfig {
	return FallbackConfig{
		MaleURL:      "https://assets.iranverse.io/avatars/default_male.glb",
		FemaleURL:    "https://assets.iranverse.io/avatars/default_female.glb",
		NonBinaryURL: "https://assets.iranverse.io/avatars/default_nonbinary.glb",
	}
}

func TestFallbackProvider_DefaultFor(t *testing.T) {
	provider := NewFallbackProvider(testFallbackConfig())

	tests := []struct {
		gender   domain.Gender
		wantID   string
		wantBase string
	}{
		{domain.GenderMale, "fallback_male", "https://assets.iranverse.io/avatars/default_male.glb"},
		{domain.GenderFemale, "fallback_female", "https://assets.iranverse.io/avatars/default_female.glb"},
		{domain.GenderNonBinary, "fallback_non-binary", "https://assets.iranverse.io/avatars/default_nonbinary.glb"},
		{domain.Gender("garbage"), "fallback_male", "https://assets.iranverse.io/avatars/default_male.glb"},
		{domain.Gender(""), "fallback_male", "https://assets.iranverse.io/avatars/default_male.glb"},
	}

	for _, tt := range tests {
		t.Run(string(tt.gender), func(t *testing.T) {
			state := provider.DefaultFor(tt.gender)

			assert.Equal(t, tt.wantID, state.RPMID)
			assert.Equal(t, tt.wantBase, state.RPMURL)
			assert.Equal(t, domain.StatusComplete, state.Status)
			assert.True(t, state.IsFallback)

			// Every variant URL is a query suffix of the base.
			assert.Equal(t, tt.wantBase+"?variant=thumb_small", state.Thumbnails.Small)
			assert.Equal(t, tt.wantBase+"?variant=ar", state.Optimized.AR)

			// 24h expiry horizon from invocation.
			assert.WithinDuration(t, time.Now().Add(24*time.Hour), state.ExpiresAt, time.Minute)

			// Fallback states pass validation as-is.
			result := ValidateState(state)
			assert.True(t, result.IsValid, "errors: %v", result.Errors)
		})
	}
}

// Same input always yields identical output apart from the time-dependent
// fields.
func TestFallbackProvider_Deterministic(t *testing.T) {
	provider := NewFallbackProvider(testFallbackConfig())

	a := provider.DefaultFor(domain.GenderFemale)
	b := provider.DefaultFor(domain.GenderFemale)

	a.ExpiresAt, b.ExpiresAt = time.Time{}, time.Time{}
	a.LastUpdated, b.LastUpdated = time.Time{}, time.Time{}
	require.Equal(t, a, b)
}

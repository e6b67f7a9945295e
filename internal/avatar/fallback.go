package avatar

import (
	"time"

	"github.com/iranverse/avatar-engine/internal/domain"
)

const fallbackTTL = 24 * time.Hour

// FallbackConfig carries the canonical base model URL per gender.
// Injected explicitly so the provider stays deterministic and testable.
type FallbackConfig struct {
	MaleURL      string
	FemaleURL    string
	NonBinaryURL string
}

// FallbackProvider builds deterministic default avatars used when creation
// fails, times out, or is skipped.
type FallbackProvider struct {
	cfg FallbackConfig
}

func NewFallbackProvider(cfg FallbackConfig) *FallbackProvider {
	return &FallbackProvider{cfg: cfg}
}

// DefaultFor returns the default avatar for a gender. Pure apart from the
// time-dependent expiry horizon: the same gender always yields the same
// identifiers and URLs. Unknown genders map to the male fallback.
func (p *FallbackProvider) DefaultFor(gender domain.Gender) *domain.AvatarState {
	base := p.cfg.MaleURL
	switch gender {
	case domain.GenderFemale:
		base = p.cfg.FemaleURL
	case domain.GenderNonBinary:
		base = p.cfg.NonBinaryURL
	case domain.GenderMale, domain.GenderCustom:
		base = p.cfg.MaleURL
	default:
		gender = domain.GenderMale
	}

	now := time.Now().UTC()
	rpmID := "fallback_" + string(gender)
	cfg := domain.DefaultConfiguration()
	cfg.Gender = gender

	return &domain.AvatarState{
		RPMID:       rpmID,
		RPMURL:      base,
		Version:     1,
		Status:      domain.StatusComplete,
		LastUpdated: now,
		GLB:         base,
		Thumbnails: domain.Thumbnails{
			Small:     variant(base, "thumb_small"),
			Medium:    variant(base, "thumb_medium"),
			Large:     variant(base, "thumb_large"),
			Square:    variant(base, "thumb_square"),
			Portrait:  variant(base, "thumb_portrait"),
			Landscape: variant(base, "thumb_landscape"),
		},
		Optimized: domain.Optimized{
			Mobile:     variant(base, "mobile"),
			MobileHD:   variant(base, "mobile_hd"),
			Web:        variant(base, "web"),
			WebHD:      variant(base, "web_hd"),
			AR:         variant(base, "ar"),
			VR:         variant(base, "vr"),
			Streaming:  variant(base, "streaming"),
			LowLatency: variant(base, "low_latency"),
		},
		Configuration: &cfg,
		CacheKey:      domain.CacheKey(rpmID, 1),
		ExpiresAt:     now.Add(fallbackTTL),
		IsFallback:    true,
	}
}

// variant derives an asset variant URL as a pure query-parameter suffix of
// the canonical base URL.
func variant(base, name string) string {
	if base == "" {
		return ""
	}
	return base + "?variant=" + name
}

package avatar

import (
	"fmt"
	"time"

	"github.com/iranverse/avatar-engine/internal/domain"
)

// MapResponse converts a backend-persisted avatar record of arbitrary or
// partial shape into the canonical AvatarState. Only a nil record is an
// error; every missing or renamed field is defaulted, because backend
// schemas evolve.
func MapResponse(raw map[string]any) (*domain.AvatarState, error) {
	if raw == nil {
		return nil, domain.ErrInvalidResponse.WithError(fmt.Errorf("nil avatar record"))
	}

	state := &domain.AvatarState{
		RPMID:       firstString(raw, "rpmId", "rpm_id", "id", "avatarId"),
		RPMURL:      firstString(raw, "rpmUrl", "rpm_url", "url", "avatarUrl"),
		Version:     intField(raw, "version"),
		Status:      domain.NormalizeStatus(firstString(raw, "status")),
		LastUpdated: timeField(raw, "lastUpdated", "last_updated", "updatedAt", "updated_at"),
		GLB:         firstString(raw, "glb", "glbUrl", "glb_url"),
		USDZ:        firstString(raw, "usdz", "usdzUrl", "usdz_url"),
		FBX:         firstString(raw, "fbx", "fbxUrl", "fbx_url"),
		// Expiry is passed through untouched; clock-dependent expiry
		// decisions belong to the caller.
		ExpiresAt: timeField(raw, "expiresAt", "expires_at"),
	}

	if thumbs, ok := raw["thumbnails"].(map[string]any); ok {
		state.Thumbnails = domain.Thumbnails{
			Small:     firstString(thumbs, "small"),
			Medium:    firstString(thumbs, "medium"),
			Large:     firstString(thumbs, "large"),
			Square:    firstString(thumbs, "square"),
			Portrait:  firstString(thumbs, "portrait"),
			Landscape: firstString(thumbs, "landscape"),
		}
	}

	if opt, ok := raw["optimized"].(map[string]any); ok {
		state.Optimized = domain.Optimized{
			Mobile:     firstString(opt, "mobile"),
			MobileHD:   firstString(opt, "mobileHd", "mobile_hd"),
			Web:        firstString(opt, "web"),
			WebHD:      firstString(opt, "webHd", "web_hd"),
			AR:         firstString(opt, "ar"),
			VR:         firstString(opt, "vr"),
			Streaming:  firstString(opt, "streaming"),
			LowLatency: firstString(opt, "lowLatency", "low_latency"),
		}
	}

	if cfg, ok := raw["configuration"].(map[string]any); ok {
		conf := domain.DefaultConfiguration()
		conf.Gender = domain.NormalizeGender(firstString(cfg, "gender"))
		conf.BodyType = domain.NormalizeBodyType(firstString(cfg, "bodyType", "body_type"))
		conf.QualityLevel = domain.NormalizeQuality(firstString(cfg, "qualityLevel", "quality_level"))
		if v := firstString(cfg, "skinTone", "skin_tone"); v != "" {
			conf.SkinTone = v
		}
		if v := firstString(cfg, "hairStyle", "hair_style"); v != "" {
			conf.HairStyle = v
		}
		if v := firstString(cfg, "hairColor", "hair_color"); v != "" {
			conf.HairColor = v
		}
		if v := firstString(cfg, "eyeColor", "eye_color"); v != "" {
			conf.EyeColor = v
		}
		state.Configuration = &conf
	}

	if meta, ok := raw["processingMetadata"].(map[string]any); ok {
		state.ProcessingMetadata = meta
	} else if meta, ok := raw["processing_metadata"].(map[string]any); ok {
		state.ProcessingMetadata = meta
	}

	if errMap, ok := raw["error"].(map[string]any); ok {
		state.Error = &domain.AvatarError{
			Type:           firstString(errMap, "type"),
			Code:           firstString(errMap, "code"),
			Message:        firstString(errMap, "message"),
			UserMessage:    firstString(errMap, "userMessage", "user_message"),
			PersianMessage: firstString(errMap, "persianMessage", "persian_message"),
			Timestamp:      timeField(errMap, "timestamp"),
			Retryable:      boolField(errMap, "retryable"),
		}
	}

	state.CacheKey = domain.CacheKey(state.RPMID, state.Version)
	return state, nil
}

// StateFromRequest builds the canonical persisted state for a freshly
// completed creation session. Version is assigned by the caller.
func StateFromRequest(req *domain.UpdateAvatarRequest, version int) *domain.AvatarState {
	if req == nil {
		return nil
	}

	conf := req.Configuration
	cust := req.Customizations

	state := &domain.AvatarState{
		RPMID:          req.RPMID,
		RPMURL:         req.RPMURL,
		Version:        version,
		Status:         domain.StatusComplete,
		LastUpdated:    time.Now().UTC(),
		GLB:            req.RPMURL,
		Configuration:  &conf,
		Customizations: &cust,
		CacheKey:       domain.CacheKey(req.RPMID, version),
	}

	if len(req.Metadata) > 0 {
		state.ProcessingMetadata = req.Metadata
	}
	return state
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func intField(m map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return int(v)
		case int:
			return v
		case int64:
			return int(v)
		}
	}
	return 0
}

func boolField(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if v, ok := m[k].(bool); ok {
			return v
		}
	}
	return false
}

// timeField accepts RFC3339 strings or epoch milliseconds; anything else
// yields the zero time.
func timeField(m map[string]any, keys ...string) time.Time {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				return t
			}
		case float64:
			if v > 0 {
				return time.UnixMilli(int64(v)).UTC()
			}
		}
	}
	return time.Time{}
}

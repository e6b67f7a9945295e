package avatar

import (
	"fmt"
	"net/url"

	"github.com/iranverse/avatar-engine/internal/domain"
)

// ValidationResult is the structured outcome of a validation pass.
// Validation never returns an error value; callers branch on IsValid.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors,omitempty"`
}

func (r *ValidationResult) add(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

var validStatuses = map[domain.AvatarStatus]bool{
	domain.StatusNone:       true,
	domain.StatusPending:    true,
	domain.StatusProcessing: true,
	domain.StatusComplete:   true,
	domain.StatusError:      true,
}

var validGenders = map[domain.Gender]bool{
	domain.GenderMale:      true,
	domain.GenderFemale:    true,
	domain.GenderNonBinary: true,
	domain.GenderCustom:    true,
}

var validBodyTypes = map[domain.BodyType]bool{
	domain.BodyTypeFullBody: true,
	domain.BodyTypeHalfBody: true,
	domain.BodyTypeHead:     true,
}

var validQualities = map[domain.QualityLevel]bool{
	domain.QualityLow:    true,
	domain.QualityMedium: true,
	domain.QualityHigh:   true,
	domain.QualityUltra:  true,
}

// ValidateState checks structural integrity of a candidate AvatarState.
func ValidateState(state *domain.AvatarState) ValidationResult {
	var result ValidationResult
	if state == nil {
		result.add("state is nil")
		return result
	}

	if state.RPMID == "" && !state.IsFallback {
		result.add("rpm_id is required")
	}
	if state.RPMURL == "" && state.GLB == "" {
		result.add("a model reference (rpm_url or glb) is required")
	}
	if !validStatuses[state.Status] {
		result.add("unknown status %q", state.Status)
	}
	if state.Version < 0 {
		result.add("version must not be negative")
	}

	if state.Configuration != nil {
		validateConfiguration(state.Configuration, &result)
	}

	urlFields := map[string]string{
		"rpm_url": state.RPMURL,
		"glb":     state.GLB,
		"usdz":    state.USDZ,
		"fbx":     state.FBX,
	}
	for i, u := range state.Thumbnails.Slots() {
		urlFields[fmt.Sprintf("thumbnails[%d]", i)] = u
	}
	for i, u := range state.Optimized.Slots() {
		urlFields[fmt.Sprintf("optimized[%d]", i)] = u
	}
	for name, u := range urlFields {
		if u == "" {
			continue
		}
		if !isValidURL(u) {
			result.add("%s is not a valid URL: %q", name, u)
		}
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// ValidateRequest checks structural integrity of an UpdateAvatarRequest
// before it is persisted.
func ValidateRequest(req *domain.UpdateAvatarRequest) ValidationResult {
	var result ValidationResult
	if req == nil {
		result.add("request is nil")
		return result
	}

	if req.RPMID == "" {
		result.add("rpm_id is required")
	}
	if req.RPMURL == "" {
		result.add("rpm_url is required")
	} else if !isValidURL(req.RPMURL) {
		result.add("rpm_url is not a valid URL: %q", req.RPMURL)
	}
	validateConfiguration(&req.Configuration, &result)

	result.IsValid = len(result.Errors) == 0
	return result
}

func validateConfiguration(cfg *domain.AvatarConfiguration, result *ValidationResult) {
	if !validGenders[cfg.Gender] {
		result.add("unknown gender %q", cfg.Gender)
	}
	if !validBodyTypes[cfg.BodyType] {
		result.add("unknown body type %q", cfg.BodyType)
	}
	if !validQualities[cfg.QualityLevel] {
		result.add("unknown quality level %q", cfg.QualityLevel)
	}
}

func isValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

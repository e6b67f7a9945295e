package domain

import (
	"fmt"
	"strings"
	"time"
)

// Gender of the avatar as declared by the creation surface.
type Gender string

const (
	GenderMale      Gender = "male"
	GenderFemale    Gender = "female"
	GenderNonBinary Gender = "non-binary"
	GenderCustom    Gender = "custom"
)

// BodyType describes how much of the avatar body the model contains.
type BodyType string

const (
	BodyTypeFullBody BodyType = "fullbody"
	BodyTypeHalfBody BodyType = "halfbody"
	BodyTypeHead     BodyType = "head"
)

// QualityLevel is the requested asset quality tier.
type QualityLevel string

const (
	QualityLow    QualityLevel = "low"
	QualityMedium QualityLevel = "medium"
	QualityHigh   QualityLevel = "high"
	QualityUltra  QualityLevel = "ultra"
)

// AvatarStatus is the lifecycle status of a persisted avatar record.
type AvatarStatus string

const (
	StatusNone       AvatarStatus = "none"
	StatusPending    AvatarStatus = "pending"
	StatusProcessing AvatarStatus = "processing"
	StatusComplete   AvatarStatus = "complete"
	StatusError      AvatarStatus = "error"
)

var genderLookup = map[string]Gender{
	"male":       GenderMale,
	"man":        GenderMale,
	"masculine":  GenderMale,
	"female":     GenderFemale,
	"woman":      GenderFemale,
	"feminine":   GenderFemale,
	"non-binary": GenderNonBinary,
	"nonbinary":  GenderNonBinary,
	"neutral":    GenderNonBinary,
	"custom":     GenderCustom,
}

var bodyTypeLookup = map[string]BodyType{
	"fullbody": BodyTypeFullBody,
	"full":     BodyTypeFullBody,
	"halfbody": BodyTypeHalfBody,
	"half":     BodyTypeHalfBody,
	"bust":     BodyTypeHalfBody,
	"head":     BodyTypeHead,
	"headonly": BodyTypeHead,
}

var qualityLookup = map[string]QualityLevel{
	"low":    QualityLow,
	"medium": QualityMedium,
	"mid":    QualityMedium,
	"high":   QualityHigh,
	"ultra":  QualityUltra,
	"max":    QualityUltra,
}

// NormalizeGender maps arbitrary input to a known Gender.
// Unknown or empty input defaults to male.
func NormalizeGender(s string) Gender {
	if g, ok := genderLookup[strings.ToLower(strings.TrimSpace(s))]; ok {
		return g
	}
	return GenderMale
}

// NormalizeBodyType maps arbitrary input to a known BodyType.
// Unknown or empty input defaults to fullbody.
func NormalizeBodyType(s string) BodyType {
	if b, ok := bodyTypeLookup[strings.ToLower(strings.TrimSpace(s))]; ok {
		return b
	}
	return BodyTypeFullBody
}

// NormalizeQuality maps arbitrary input to a known QualityLevel.
// Unknown or empty input defaults to medium.
func NormalizeQuality(s string) QualityLevel {
	if q, ok := qualityLookup[strings.ToLower(strings.TrimSpace(s))]; ok {
		return q
	}
	return QualityMedium
}

// NormalizeStatus maps arbitrary input to a known AvatarStatus.
// Unknown or empty input defaults to none.
func NormalizeStatus(s string) AvatarStatus {
	switch AvatarStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending
	case StatusProcessing:
		return StatusProcessing
	case StatusComplete:
		return StatusComplete
	case StatusError:
		return StatusError
	default:
		return StatusNone
	}
}

// AvatarConfiguration is the declared configuration of an avatar.
// Immutable once attached to an UpdateAvatarRequest.
type AvatarConfiguration struct {
	Gender              Gender       `json:"gender"`
	BodyType            BodyType     `json:"body_type"`
	SkinTone            string       `json:"skin_tone"`
	HairStyle           string       `json:"hair_style"`
	HairColor           string       `json:"hair_color"`
	EyeColor            string       `json:"eye_color"`
	CulturalContext     string       `json:"cultural_context,omitempty"`
	QualityLevel        QualityLevel `json:"quality_level"`
	OptimizationProfile string       `json:"optimization_profile,omitempty"`
}

// DefaultConfiguration returns a configuration with every enum resolved to
// its documented default.
func DefaultConfiguration() AvatarConfiguration {
	return AvatarConfiguration{
		Gender:       GenderMale,
		BodyType:     BodyTypeFullBody,
		SkinTone:     "medium",
		HairStyle:    "short",
		HairColor:    "black",
		EyeColor:     "brown",
		QualityLevel: QualityMedium,
	}
}

// FaceCustomization holds face shape and per-feature tuning values.
type FaceCustomization struct {
	Shape    string             `json:"shape,omitempty"`
	Features map[string]float64 `json:"features,omitempty"`
}

// HairCustomization holds hair styling customizations.
type HairCustomization struct {
	Style  string `json:"style,omitempty"`
	Length string `json:"length,omitempty"`
	Color  string `json:"color,omitempty"`
}

// OutfitCustomization holds outfit slot assignments.
type OutfitCustomization struct {
	Top         string   `json:"top,omitempty"`
	Bottom      string   `json:"bottom,omitempty"`
	Shoes       string   `json:"shoes,omitempty"`
	Accessories []string `json:"accessories,omitempty"`
}

// BodyCustomization holds body shape customizations.
type BodyCustomization struct {
	Height      float64            `json:"height,omitempty"`
	Build       string             `json:"build,omitempty"`
	Proportions map[string]float64 `json:"proportions,omitempty"`
}

// AvatarCustomizations groups optional nested customization records.
// A nil member means the user never touched that section.
type AvatarCustomizations struct {
	Face   *FaceCustomization   `json:"face,omitempty"`
	Hair   *HairCustomization   `json:"hair,omitempty"`
	Outfit *OutfitCustomization `json:"outfit,omitempty"`
	Body   *BodyCustomization   `json:"body,omitempty"`
}

// UpdateAvatarRequest is the normalized output of a successful creation
// session. Value object: never mutated after construction.
type UpdateAvatarRequest struct {
	RPMID          string               `json:"rpm_id"`
	RPMURL         string               `json:"rpm_url"`
	Configuration  AvatarConfiguration  `json:"configuration"`
	Customizations AvatarCustomizations `json:"customizations"`
	Preferences    map[string]any       `json:"preferences,omitempty"`
	Metadata       map[string]any       `json:"metadata,omitempty"`
}

// Thumbnails holds the six thumbnail variant URLs.
// Empty string means the variant is absent.
type Thumbnails struct {
	Small     string `json:"small,omitempty"`
	Medium    string `json:"medium,omitempty"`
	Large     string `json:"large,omitempty"`
	Square    string `json:"square,omitempty"`
	Portrait  string `json:"portrait,omitempty"`
	Landscape string `json:"landscape,omitempty"`
}

// Slots returns the thumbnail URLs in slot order.
func (t Thumbnails) Slots() []string {
	return []string{t.Small, t.Medium, t.Large, t.Square, t.Portrait, t.Landscape}
}

// Optimized holds the eight device-optimized variant URLs.
// Empty string means the variant is absent.
type Optimized struct {
	Mobile     string `json:"mobile,omitempty"`
	MobileHD   string `json:"mobile_hd,omitempty"`
	Web        string `json:"web,omitempty"`
	WebHD      string `json:"web_hd,omitempty"`
	AR         string `json:"ar,omitempty"`
	VR         string `json:"vr,omitempty"`
	Streaming  string `json:"streaming,omitempty"`
	LowLatency string `json:"low_latency,omitempty"`
}

// Slots returns the optimized variant URLs in slot order.
func (o Optimized) Slots() []string {
	return []string{o.Mobile, o.MobileHD, o.Web, o.WebHD, o.AR, o.VR, o.Streaming, o.LowLatency}
}

// AvatarState is the canonical persisted-and-cached avatar record.
// Replaced whole on every new version; never partially mutated.
type AvatarState struct {
	RPMID              string                `json:"rpm_id"`
	RPMURL             string                `json:"rpm_url"`
	Version            int                   `json:"version"`
	Status             AvatarStatus          `json:"status"`
	LastUpdated        time.Time             `json:"last_updated"`
	Thumbnails         Thumbnails            `json:"thumbnails"`
	Optimized          Optimized             `json:"optimized"`
	GLB                string                `json:"glb,omitempty"`
	USDZ               string                `json:"usdz,omitempty"`
	FBX                string                `json:"fbx,omitempty"`
	Configuration      *AvatarConfiguration  `json:"configuration,omitempty"`
	Customizations     *AvatarCustomizations `json:"customizations,omitempty"`
	ProcessingMetadata map[string]any        `json:"processing_metadata,omitempty"`
	Error              *AvatarError          `json:"error,omitempty"`
	CacheKey           string                `json:"cache_key"`
	ExpiresAt          time.Time             `json:"expires_at,omitempty"`
	IsFallback         bool                  `json:"is_fallback,omitempty"`
}

// CacheKey derives the deterministic cache key for an avatar version.
func CacheKey(rpmID string, version int) string {
	return fmt.Sprintf("avatar:%s:v%d", rpmID, version)
}

// LatestCacheKey is the moving pointer to the newest cached version of
// an avatar. Overwritten on every write of a newer version.
func LatestCacheKey(rpmID string) string {
	return fmt.Sprintf("avatar:%s:latest", rpmID)
}

// AvatarError describes a pipeline failure. Attached to an AvatarState,
// never a replacement for it.
type AvatarError struct {
	Type            string    `json:"type"`
	Code            string    `json:"code"`
	Message         string    `json:"message"`
	UserMessage     string    `json:"user_message"`
	PersianMessage  string    `json:"persian_message,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	Retryable       bool      `json:"retryable"`
	SuggestedAction string    `json:"suggested_action,omitempty"`
	FallbackOptions []string  `json:"fallback_options,omitempty"`
}

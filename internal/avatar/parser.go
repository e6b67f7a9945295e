package avatar

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/iranverse/avatar-engine/internal/channel"
	"github.com/iranverse/avatar-engine/internal/domain"
)

const morphParamKey = "morphTargets"

// Parser converts validated "avatar" envelopes into normalized
// UpdateAvatarRequest value objects.
type Parser struct {
	morphTargets []string
}

func NewParser(morphTargets []string) *Parser {
	return &Parser{morphTargets: morphTargets}
}

// Parse normalizes an avatar envelope. Fails with ErrMalformedPayload when
// the envelope carries neither data.url nor a top-level url; every other
// missing field is defaulted, never propagated as absent.
func (p *Parser) Parse(env *channel.Envelope) (*domain.UpdateAvatarRequest, error) {
	if env == nil || env.Type != channel.TypeAvatar {
		return nil, domain.ErrMalformedPayload.WithError(fmt.Errorf("not an avatar envelope"))
	}

	modelURL := env.ModelURL()
	if modelURL == "" {
		return nil, domain.ErrMalformedPayload.WithError(fmt.Errorf("avatar envelope has no model url"))
	}

	modelURL = p.EnsureMorphParams(modelURL)

	req := &domain.UpdateAvatarRequest{
		RPMID:         extractModelID(modelURL),
		RPMURL:        modelURL,
		Configuration: p.parseConfiguration(env.Data),
	}
	req.Customizations = parseCustomizations(env.Data)

	if env.Data != nil {
		if prefs, ok := env.Data["preferences"].(map[string]any); ok {
			req.Preferences = prefs
		}
		if meta, ok := env.Data["metadata"].(map[string]any); ok {
			req.Metadata = meta
		}
	}

	return req, nil
}

// EnsureMorphParams appends the morph-target capability parameter block to
// a model URL exactly once. Idempotent: a URL that already carries the
// parameter key is returned unchanged.
func (p *Parser) EnsureMorphParams(modelURL string) string {
	if len(p.morphTargets) == 0 {
		return modelURL
	}

	u, err := url.Parse(modelURL)
	if err != nil {
		return modelURL
	}

	q := u.Query()
	if q.Has(morphParamKey) {
		return modelURL
	}
	q.Set(morphParamKey, strings.Join(p.morphTargets, ","))
	u.RawQuery = q.Encode()
	return u.String()
}

func (p *Parser) parseConfiguration(data map[string]any) domain.AvatarConfiguration {
	cfg := domain.DefaultConfiguration()
	if data == nil {
		return cfg
	}

	cfg.Gender = domain.NormalizeGender(stringField(data, "gender"))
	cfg.BodyType = domain.NormalizeBodyType(stringField(data, "bodyType", "body_type"))
	if q := stringField(data, "quality", "qualityLevel", "quality_level"); q != "" {
		cfg.QualityLevel = domain.NormalizeQuality(q)
	}
	if v := stringField(data, "culturalContext", "cultural_context"); v != "" {
		cfg.CulturalContext = v
	}
	if v := stringField(data, "optimizationProfile", "optimization_profile"); v != "" {
		cfg.OptimizationProfile = v
	}

	// Asset arrays carry named sub-properties tagged by type or category.
	for _, asset := range assetList(data) {
		tag := strings.ToLower(stringField(asset, "type", "category"))
		switch tag {
		case "skin", "skintone", "skin_tone":
			if v := assetValue(asset); v != "" {
				cfg.SkinTone = v
			}
		case "hairstyle", "hair_style", "hair":
			if v := assetValue(asset); v != "" {
				cfg.HairStyle = v
			}
		case "haircolor", "hair_color":
			if v := assetValue(asset); v != "" {
				cfg.HairColor = v
			}
		case "eyecolor", "eye_color", "eyes":
			if v := assetValue(asset); v != "" {
				cfg.EyeColor = v
			}
		}
	}

	return cfg
}

func parseCustomizations(data map[string]any) domain.AvatarCustomizations {
	var out domain.AvatarCustomizations
	if data == nil {
		return out
	}

	for _, asset := range assetList(data) {
		tag := strings.ToLower(stringField(asset, "type", "category"))
		switch tag {
		case "faceshape", "face_shape", "face":
			if out.Face == nil {
				out.Face = &domain.FaceCustomization{}
			}
			if v := assetValue(asset); v != "" {
				out.Face.Shape = v
			}
		case "hairlength", "hair_length":
			if out.Hair == nil {
				out.Hair = &domain.HairCustomization{}
			}
			if v := assetValue(asset); v != "" {
				out.Hair.Length = v
			}
		case "top", "shirt":
			ensureOutfit(&out).Top = assetValue(asset)
		case "bottom", "pants":
			ensureOutfit(&out).Bottom = assetValue(asset)
		case "shoes", "footwear":
			ensureOutfit(&out).Shoes = assetValue(asset)
		case "accessory", "accessories":
			o := ensureOutfit(&out)
			if id := stringField(asset, "id", "value", "name"); id != "" {
				o.Accessories = append(o.Accessories, id)
			}
		}
	}

	return out
}

func ensureOutfit(c *domain.AvatarCustomizations) *domain.OutfitCustomization {
	if c.Outfit == nil {
		c.Outfit = &domain.OutfitCustomization{}
	}
	return c.Outfit
}

// assetList pulls the asset array out of the payload, tolerating both the
// "assets" and "customizations" keys.
func assetList(data map[string]any) []map[string]any {
	var raw any
	if v, ok := data["assets"]; ok {
		raw = v
	} else if v, ok := data["customizations"]; ok {
		raw = v
	}

	items, ok := raw.([]any)
	if !ok {
		return nil
	}

	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func assetValue(asset map[string]any) string {
	return stringField(asset, "value", "name", "id")
}

// stringField returns the first non-empty string among the given keys.
func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// extractModelID derives the stable avatar identifier from the model URL:
// the final path segment without the file extension.
func extractModelID(modelURL string) string {
	u, err := url.Parse(modelURL)
	if err != nil {
		return modelURL
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segments[len(segments)-1]
	if idx := strings.LastIndex(last, "."); idx > 0 {
		last = last[:idx]
	}
	if last == "" {
		return modelURL
	}
	return last
}

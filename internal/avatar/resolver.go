package avatar

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iranverse/avatar-engine/internal/domain"
)

// Context is the device context an asset is resolved for.
type Context string

const (
	ContextThumbnail Context = "thumbnail"
	ContextDisplay   Context = "display"
	Context3D        Context = "3d"
	ContextAR        Context = "ar"
	ContextVR        Context = "vr"
)

// ParseContext maps arbitrary input to a known Context, defaulting to
// display.
func ParseContext(s string) Context {
	switch Context(strings.ToLower(strings.TrimSpace(s))) {
	case ContextThumbnail:
		return ContextThumbnail
	case Context3D:
		return Context3D
	case ContextAR:
		return ContextAR
	case ContextVR:
		return ContextVR
	default:
		return ContextDisplay
	}
}

// Resolve picks the best available asset URL for a device context by
// walking a fixed priority chain. Returns "" when the state has no usable
// asset at all. Never panics, whatever the state looks like.
func Resolve(state *domain.AvatarState, ctx Context) string {
	if state == nil {
		return ""
	}

	var chain []string
	switch ctx {
	case ContextThumbnail:
		chain = []string{
			state.Thumbnails.Medium,
			state.Thumbnails.Small,
			state.Thumbnails.Large,
			state.Thumbnails.Square,
			state.Thumbnails.Portrait,
			state.Thumbnails.Landscape,
			state.Optimized.Mobile,
			state.GLB,
			state.RPMURL,
		}
	case Context3D:
		chain = []string{
			state.GLB,
			state.Optimized.WebHD,
			state.Optimized.Web,
			state.RPMURL,
		}
	case ContextAR:
		chain = []string{
			state.Optimized.AR,
			state.USDZ,
			state.GLB,
			state.RPMURL,
		}
	case ContextVR:
		chain = []string{
			state.Optimized.VR,
			state.Optimized.Streaming,
			state.GLB,
			state.RPMURL,
		}
	default: // display
		chain = []string{
			state.Optimized.Mobile,
			state.Optimized.MobileHD,
			state.Optimized.Web,
			state.Optimized.WebHD,
			state.GLB,
			state.RPMURL,
		}
	}

	for _, u := range chain {
		if u != "" {
			return u
		}
	}
	return ""
}

// VersionedURL appends a version marker and a cache-busting timestamp to a
// base URL. Malformed input falls back to manual query concatenation
// rather than failing.
func VersionedURL(base string, version int) string {
	if base == "" {
		return ""
	}

	ts := time.Now().Unix()

	u, err := url.Parse(base)
	if err != nil {
		sep := "?"
		if strings.Contains(base, "?") {
			sep = "&"
		}
		return fmt.Sprintf("%s%sv=%d&t=%d", base, sep, version, ts)
	}

	q := u.Query()
	q.Set("v", strconv.Itoa(version))
	q.Set("t", strconv.FormatInt(ts, 10))
	u.RawQuery = q.Encode()
	return u.String()
}

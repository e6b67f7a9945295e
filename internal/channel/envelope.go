package channel

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/iranverse/avatar-engine/internal/domain"
)

// MessageType tags an inbound envelope from the embedded creation surface.
type MessageType string

const (
	TypeIframeLoaded   MessageType = "iframe_loaded"
	TypePageLoaded     MessageType = "page_loaded"
	TypeAvatar         MessageType = "avatar"
	TypeClose          MessageType = "close"
	TypeError          MessageType = "error"
	TypeUserAuthorized MessageType = "user_authorized"
	TypeUserUpdated    MessageType = "user_updated"

	// TypeUnknown tags envelopes with an unrecognized type. They are
	// accepted and ignored downstream.
	TypeUnknown MessageType = "unknown"
)

var knownTypes = map[MessageType]bool{
	TypeIframeLoaded:   true,
	TypePageLoaded:     true,
	TypeAvatar:         true,
	TypeClose:          true,
	TypeError:          true,
	TypeUserAuthorized: true,
	TypeUserUpdated:    true,
}

// Envelope is a validated message from the creation surface.
type Envelope struct {
	Type    MessageType    `json:"type"`
	Data    map[string]any `json:"data,omitempty"`
	URL     string         `json:"url,omitempty"`
	Message string         `json:"message,omitempty"`
}

// ModelURL returns the model URL carried by the envelope, preferring
// data.url over the top-level url field.
func (e *Envelope) ModelURL() string {
	if e.Data != nil {
		if u, ok := e.Data["url"].(string); ok && u != "" {
			return u
		}
	}
	return e.URL
}

// Adapter parses inbound messages and serializes outbound commands.
// The creation surface is untrusted: garbage input never crashes the
// session, it only yields an error the caller must ignore.
type Adapter struct {
	providerDomains []string
}

func NewAdapter(providerDomains []string) *Adapter {
	return &Adapter{providerDomains: providerDomains}
}

// Receive parses a raw inbound message. Three inputs are accepted: a JSON
// envelope, a bare model-file URL from an allow-listed provider domain, or
// a JSON-encoded string holding such a URL. Everything else fails with
// ErrMalformedPayload.
func (a *Adapter) Receive(raw []byte) (*Envelope, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, domain.ErrMalformedPayload.WithError(fmt.Errorf("empty message"))
	}

	if strings.HasPrefix(trimmed, "{") {
		var env Envelope
		if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
			return nil, domain.ErrMalformedPayload.WithError(fmt.Errorf("decode envelope: %w", err))
		}
		if !knownTypes[env.Type] {
			env.Type = TypeUnknown
		}
		return &env, nil
	}

	// JSON-encoded string, e.g. "\"https://...glb\""
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
			trimmed = s
		}
	}

	if a.isModelURL(trimmed) {
		return &Envelope{Type: TypeAvatar, URL: trimmed}, nil
	}

	return nil, domain.ErrMalformedPayload.WithError(fmt.Errorf("unrecognized message shape"))
}

// isModelURL applies the bare-URL fallback heuristic, tightened with the
// configured provider domain allow-list: the host must belong to a known
// provider and the path must reference a .glb model file.
func (a *Adapter) isModelURL(s string) bool {
	if !strings.Contains(s, ".glb") {
		return false
	}

	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if !strings.HasSuffix(strings.ToLower(u.Path), ".glb") {
		return false
	}

	host := strings.ToLower(u.Hostname())
	for _, d := range a.providerDomains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

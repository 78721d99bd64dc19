// internal/assets/assets.go
package assets

import (
	"strings"
)

// DefaultBaseURL hosts the sample story's images and sounds.
const DefaultBaseURL = "https://huggingface.co/spaces/cduss/reachymini_vn_example/resolve/main"

// Kind is the asset folder a file lives in.
type Kind string

const (
	KindBackground Kind = "backgrounds"
	KindSprite     Kind = "sprites"
	KindAudio      Kind = "audio"
)

// Resolver turns bare asset file names into URLs under BaseURL/assets/<kind>/.
type Resolver struct {
	BaseURL string
}

// NewResolver returns a resolver for baseURL, falling back to DefaultBaseURL.
func NewResolver(baseURL string) Resolver {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return Resolver{BaseURL: strings.TrimRight(baseURL, "/")}
}

// Resolve leaves absolute URLs, data URIs and rooted paths untouched.
func (r Resolver) Resolve(kind Kind, file string) string {
	if file == "" || IsAbsolute(file) {
		return file
	}
	base := r.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return base + "/assets/" + string(kind) + "/" + strings.TrimLeft(file, "/")
}

// Background resolves a background image.
func (r Resolver) Background(file string) string { return r.Resolve(KindBackground, file) }

// Sprite resolves a character sprite.
func (r Resolver) Sprite(file string) string { return r.Resolve(KindSprite, file) }

// Audio resolves a sound file.
func (r Resolver) Audio(file string) string { return r.Resolve(KindAudio, file) }

// IsAbsolute reports whether ref already points somewhere on its own.
func IsAbsolute(ref string) bool {
	if strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, "data:") {
		return true
	}
	i := strings.Index(ref, "://")
	if i <= 0 {
		return false
	}
	for _, c := range ref[:i] {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.') {
			return false
		}
	}
	return true
}

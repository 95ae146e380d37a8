// Package markdown renders the long-form notes attached to a budget item.
package markdown

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html/template"
	"regexp"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"budget/internal/cache"
)

const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = 30 * time.Minute
)

// Renderer converts markdown to sanitized HTML. Output is cached by content
// hash, so repeated previews of the same text are free.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	cache  *cache.LRUCache[template.HTML]
}

func NewRenderer(cacheSize int, ttl time.Duration) *Renderer {
	policy := bluemonday.UGCPolicy()
	// GFM task list items render as disabled checkboxes.
	policy.AllowAttrs("type").Matching(regexp.MustCompile(`^checkbox$`)).OnElements("input")
	policy.AllowAttrs("checked", "disabled").OnElements("input")

	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
		policy: policy,
		cache:  cache.NewLRUCache[template.HTML](cacheSize, ttl),
	}
}

// Render returns HTML safe to embed in a page. Empty input renders empty.
func (r *Renderer) Render(src string) (template.HTML, error) {
	if src == "" {
		return "", nil
	}
	key := hash(src)
	if out, ok := r.cache.Get(key); ok {
		return out, nil
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	out := template.HTML(r.policy.SanitizeBytes(buf.Bytes()))
	r.cache.Set(key, out)
	return out, nil
}

// Cache exposes the render cache for cleanup and metrics.
func (r *Renderer) Cache() *cache.LRUCache[template.HTML] { return r.cache }

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

package scanner

import (
	"regexp"
	"strings"

	"github.com/anmarca/chatgrab/pkg/plugin"
)

// Rules is the pure-data classification configuration. The shipped product
// variants differ only in these tables, never in traversal code.
type Rules struct {
	// SourceMarkers: a source must contain at least one to be in scope
	// (in-page binary handles and the host media domains).
	SourceMarkers []string

	// ExcludedSources: profile-picture CDN paths, never message content.
	ExcludedSources []string

	// NoiseMarkers: source substrings that flag decorative images.
	NoiseMarkers []string

	// ExcludedAncestors: selectors whose subtrees never hold message media
	// (header, contact-info panel, conversation list).
	ExcludedAncestors []string

	// AvatarContainers: selectors for wrappers around avatar thumbnails
	// embedded in message rows.
	AvatarContainers []string

	// MinSquare: images with both dimensions below this are avatar-sized.
	MinSquare int
}

// DefaultRules matches the host chat page's current markup.
func DefaultRules() Rules {
	return Rules{
		SourceMarkers:   []string{"blob:", "mmg.whatsapp.net", "whatsapp.net"},
		ExcludedSources: []string{"pps.whatsapp.net"},
		NoiseMarkers:    []string{"avatar", "emoji", "icon", "profile", "status"},
		ExcludedAncestors: []string{
			"header",
			`[data-testid="conversation-info-header"]`,
			`[data-testid="chat-list"]`,
		},
		AvatarContainers: []string{
			`[data-testid*="avatar"]`,
			`[data-testid="photo-btn"]`,
			`[data-testid="default-user"]`,
		},
		MinSquare: 70,
	}
}

var (
	docExtensionRe = regexp.MustCompile(`(?i)\.(pdf|doc|docx|xls|xlsx|txt|ppt|pptx|zip|rar)`)
	pageCountRe    = regexp.MustCompile(`(?i)\d+\s*(página|pagina|page|pág)`)
	sizePhraseRe   = regexp.MustCompile(`(?i)\d+(\.\d+)?\s*(KB|MB|GB)`)
	filenameRe     = regexp.MustCompile(`(?i)([^\n]+\.(pdf|doc|docx|xls|xlsx|txt|ppt|pptx|zip|rar))`)
)

// RuleClassifier applies a Rules table. It implements plugin.Classifier.
type RuleClassifier struct {
	Rules Rules
}

func NewClassifier() *RuleClassifier {
	return &RuleClassifier{Rules: DefaultRules()}
}

// ClassifyImage returns the retrievable source URL of an in-scope message
// image, or ok=false for avatars, UI chrome and out-of-scope sources.
func (c *RuleClassifier) ClassifyImage(el plugin.Element) (string, bool) {
	src, _ := el.Attr("src")
	if src == "" {
		src, _ = el.Attr("data-src")
	}
	if src == "" {
		return "", false
	}

	if !containsAny(src, c.Rules.SourceMarkers) {
		return "", false
	}
	if containsAny(src, c.Rules.ExcludedSources) {
		return "", false
	}
	if containsAny(src, c.Rules.NoiseMarkers) {
		return "", false
	}

	for _, sel := range c.Rules.ExcludedAncestors {
		if _, ok := el.Closest(sel); ok {
			return "", false
		}
	}
	for _, sel := range c.Rules.AvatarContainers {
		if _, ok := el.Closest(sel); ok {
			return "", false
		}
	}

	// Avatars inlined in message rows render around 33-49px.
	if w, h := el.Size(); w > 0 && h > 0 && w < c.Rules.MinSquare && h < c.Rules.MinSquare {
		return "", false
	}

	return src, true
}

// ClassifyDocument returns the display title of a document reference
// button. Any one of a document extension, a page-count phrase, or a
// size-with-unit phrase in the button text qualifies it.
func (c *RuleClassifier) ClassifyDocument(el plugin.Element) (string, bool) {
	text := el.Text()
	if !docExtensionRe.MatchString(text) &&
		!pageCountRe.MatchString(text) &&
		!sizePhraseRe.MatchString(text) {
		return "", false
	}

	if m := filenameRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if title, ok := el.Attr("title"); ok && title != "" {
		return title, true
	}
	if titled, ok := el.Query("[title]"); ok {
		if title, ok := titled.Attr("title"); ok && title != "" {
			return title, true
		}
	}
	return "document", true
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

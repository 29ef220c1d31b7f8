// Package identity detects which conversation is currently open and turns
// its name into filesystem-safe tokens.
package identity

import (
	"strings"

	"github.com/anmarca/chatgrab/pkg/plugin"
)

const mainHeaderSelector = "#main header"

// Resolve extracts a stable-enough identity for the open conversation.
// Phone-shaped tokens win over display names; the fallback chain is known
// header selectors, raw header segmentation, the page title, then "".
func Resolve(p plugin.Page) string {
	headerText := ""
	if header, ok := p.Query(mainHeaderSelector); ok {
		headerText = header.Text()
	}
	pageText := p.Text()

	for _, text := range []string{headerText, pageText} {
		if phone := matchPhone(text); phone != "" {
			return phone
		}
	}

	for _, selector := range headerSelectors {
		header, ok := p.Query(selector)
		if !ok {
			continue
		}

		for _, el := range header.QueryAll("span, div") {
			text := strings.TrimSpace(el.Text())
			if !plausibleName(text) {
				continue
			}
			if cleaned := CleanName(text); cleaned != "" {
				return cleaned
			}
		}
	}

	// Last structural resort: segment the raw header text.
	if headerText != "" {
		for _, part := range segmentSplitRe.Split(headerText, -1) {
			part = strings.TrimSpace(part)
			if len(part) > 0 && len(part) < 50 {
				return part
			}
		}
	}

	if title := strings.TrimSpace(p.Title()); title != "" && !strings.Contains(title, "WhatsApp") {
		return title
	}

	return ""
}

// CleanName strips presence/status noise from a header fragment.
func CleanName(text string) string {
	if text == "" {
		return ""
	}

	cleaned := text
	for _, pattern := range presencePatterns {
		cleaned = pattern.ReplaceAllString(cleaned, "")
	}

	cleaned = strings.TrimSpace(whitespaceRe.ReplaceAllString(cleaned, " "))

	if i := strings.Index(cleaned, " - "); i >= 0 {
		cleaned = strings.TrimSpace(cleaned[:i])
	}
	if i := strings.Index(cleaned, ","); i >= 0 {
		cleaned = strings.TrimSpace(cleaned[:i])
	}

	return strings.TrimSpace(cleaned)
}

func matchPhone(text string) string {
	for _, pattern := range phonePatterns {
		match := pattern.FindString(text)
		if match == "" {
			continue
		}

		phone := nonPhoneRe.ReplaceAllString(whitespaceRe.ReplaceAllString(match, ""), "")
		if len(phone) >= 9 {
			return phone
		}
	}
	return ""
}

func plausibleName(text string) bool {
	if text == "" || len(text) >= 100 {
		return false
	}
	for _, tok := range uiNoiseTokens {
		if strings.Contains(text, tok) {
			return false
		}
	}
	return !timeOnlyRe.MatchString(text)
}

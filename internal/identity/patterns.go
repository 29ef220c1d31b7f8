package identity

import "regexp"

// The pattern cascades live here as plain data so they can be unit-tested
// without any DOM traversal.

// phonePatterns is checked in order: international shapes before local
// shapes before bare digit runs. A numeric identity is preferred over a
// display name because presence text rotates through the header.
var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\+\d{1,3}[\s-]?\d{1,4}[\s-]?\d{1,4}[\s-]?\d{1,4}[\s-]?\d{1,4}`),
	regexp.MustCompile(`\+\d{1,3}\s?\(?\d{1,4}\)?\s?\d{1,4}\s?\d{1,4}`),
	regexp.MustCompile(`\d{9,15}`),
	regexp.MustCompile(`\d{3}[-.\s]?\d{3}[-.\s]?\d{4}`),
	regexp.MustCompile(`\(\d{3}\)\s?\d{3}[-.\s]?\d{4}`),
}

// presencePatterns are stripped from header text before it is accepted as
// a display name. The host UI mixes presence/status lines into the header
// in several languages.
var presencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)en línea`),
	regexp.MustCompile(`(?i)última vez.*`),
	regexp.MustCompile(`(?i)últ\. vez.*`),
	regexp.MustCompile(`(?i)hace \d+ (minuto|minutos|hora|horas|día|días)`),
	regexp.MustCompile(`(?i)escribiendo\.\.\.`),
	regexp.MustCompile(`(?i)grabando audio\.\.\.`),
	regexp.MustCompile(`(?i)haz clic aquí para ver la información de contacto`),
	regexp.MustCompile(`(?i)haz clic para.*`),
	regexp.MustCompile(`(?i)online`),
	regexp.MustCompile(`(?i)last seen.*`),
	regexp.MustCompile(`(?i)typing\.\.\.`),
	regexp.MustCompile(`(?i)recording audio\.\.\.`),
	regexp.MustCompile(`(?i)click here to.*`),
	regexp.MustCompile(`(?i)click to view.*`),
	regexp.MustCompile(`(?i)visto por último.*`),
	regexp.MustCompile(`(?i)digitando\.\.\.`),
	regexp.MustCompile(`(?i)clique aqui para.*`),
	regexp.MustCompile(`(?i)hace`),
	regexp.MustCompile(`(?i)ago`),
	regexp.MustCompile(`(?i)at \d{1,2}:\d{2}`),
	regexp.MustCompile(`(?i)a las \d{1,2}:\d{2}`),
	regexp.MustCompile(`(?i)ayer`),
	regexp.MustCompile(`(?i)yesterday`),
	regexp.MustCompile(`(?i)today`),
	regexp.MustCompile(`(?i)hoy`),
}

// headerSelectors are tried in order when falling back from phone
// detection to free-text name extraction.
var headerSelectors = []string{
	`header [data-testid="conversation-info-header"]`,
	`header [data-testid="conversation-header"]`,
	`header div[role="button"]`,
	`#main header`,
	`header.chat-header`,
}

// uiNoiseTokens disqualify a header text fragment from being a name.
var uiNoiseTokens = []string{
	"WhatsApp",
	"Search",
	"Menu",
	"haz clic",
	"click here",
	"clique aqui",
}

var (
	timeOnlyRe     = regexp.MustCompile(`^\d{1,2}:\d{2}$`)
	segmentSplitRe = regexp.MustCompile(`\n|\t|  +`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	reservedRe     = regexp.MustCompile(`[<>:"/\\|?*]`)
	multiUnderRe   = regexp.MustCompile(`_{2,}`)
	nonASCIIRe     = regexp.MustCompile(`[^\x00-\x7F]`)
	nonPhoneRe     = regexp.MustCompile(`[^\d+]`)
)

// Package commands classifies inbound text against the fixed command
// vocabulary and owns the localized static replies.
package commands

import (
	"sort"
	"strings"
)

// Kind identifies how an inbound text should be handled
type Kind string

const (
	// KindPromptForText is empty or whitespace-only input
	KindPromptForText Kind = "prompt_for_text"

	// KindHelp is the start command
	KindHelp Kind = "help"

	// KindLangHelp is the language help command
	KindLangHelp Kind = "lang_help"

	// KindSetLanguage is a recognized language-set command
	KindSetLanguage Kind = "set_language"

	// KindPassthrough is an ordinary message for the remote conversation
	KindPassthrough Kind = "passthrough"
)

// Command is the classification of one inbound text
type Command struct {
	Kind Kind

	// Language is the requested code, set only for KindSetLanguage
	Language string
}

// supportedLanguages is the fixed set of settable language codes
var supportedLanguages = map[string]bool{
	"en": true,
	"nl": true,
	"de": true,
	"fr": true,
	"es": true,
}

// Classify maps inbound text to a command. The start alias is accepted
// case-insensitively with or without the leading slash; language-set
// commands require the slash form so two-letter chat messages are not
// swallowed.
func Classify(text string) Command {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Command{Kind: KindPromptForText}
	}

	lower := strings.ToLower(trimmed)
	switch lower {
	case "start", "/start":
		return Command{Kind: KindHelp}
	case "lang", "/lang":
		return Command{Kind: KindLangHelp}
	}

	if strings.HasPrefix(lower, "/") {
		code := lower[1:]
		if supportedLanguages[code] {
			return Command{Kind: KindSetLanguage, Language: code}
		}
	}

	return Command{Kind: KindPassthrough}
}

// IsSupportedLanguage reports whether code is a settable language
func IsSupportedLanguage(code string) bool {
	return supportedLanguages[code]
}

// SupportedLanguages returns the settable codes in stable order
func SupportedLanguages() []string {
	codes := make([]string, 0, len(supportedLanguages))
	for code := range supportedLanguages {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

package commands

import (
	"fmt"
	"strings"
	"sync"
)

// ReplySet holds the static replies for one language
type ReplySet struct {
	Help          string `json:"help"`
	LangHelp      string `json:"lang_help"`
	Confirm       string `json:"confirm"`
	Apology       string `json:"apology"`
	TryAgain      string `json:"try_again"`
	PromptForText string `json:"prompt_for_text"`
}

// Catalog resolves language-aware static replies. Lookup falls back to
// English when a language has no entry. Safe for concurrent use; the
// override loader replaces entries under the write lock.
type Catalog struct {
	mu      sync.RWMutex
	replies map[string]ReplySet
}

// NewCatalog creates a catalog with the built-in replies
func NewCatalog() *Catalog {
	return &Catalog{replies: builtinReplies()}
}

// resolve returns the reply set for a language, falling back to English
func (c *Catalog) resolve(language string) ReplySet {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if set, ok := c.replies[language]; ok {
		return set
	}
	return c.replies["en"]
}

// Help returns the start/help message
func (c *Catalog) Help(language string) string {
	return c.resolve(language).Help
}

// LangHelp returns the language help message listing settable codes
func (c *Catalog) LangHelp(language string) string {
	codes := make([]string, 0, len(supportedLanguages))
	for _, code := range SupportedLanguages() {
		codes = append(codes, "/"+code)
	}
	return fmt.Sprintf(c.resolve(language).LangHelp, strings.Join(codes, " "))
}

// Confirm returns the language-set confirmation in the new language
func (c *Catalog) Confirm(language string) string {
	return c.resolve(language).Confirm
}

// Apology returns the failed/timed-out run message
func (c *Catalog) Apology(language string) string {
	return c.resolve(language).Apology
}

// TryAgain returns the empty-reply fallback message
func (c *Catalog) TryAgain(language string) string {
	return c.resolve(language).TryAgain
}

// PromptForText returns the message for empty inbound text
func (c *Catalog) PromptForText(language string) string {
	return c.resolve(language).PromptForText
}

func builtinReplies() map[string]ReplySet {
	return map[string]ReplySet{
		"en": {
			Help:          "Hi! Send me a message and I will answer. Send /lang to change my language.",
			LangHelp:      "Pick a language: %s",
			Confirm:       "Alright, I will reply in English from now on.",
			Apology:       "Sorry, I could not process that right now. Please try again in a moment.",
			TryAgain:      "I did not come up with an answer. Please try again.",
			PromptForText: "Please send me a text message.",
		},
		"nl": {
			Help:          "Hoi! Stuur me een bericht en ik geef antwoord. Stuur /lang om mijn taal te wijzigen.",
			LangHelp:      "Kies een taal: %s",
			Confirm:       "Prima, ik antwoord vanaf nu in het Nederlands.",
			Apology:       "Sorry, ik kon dat nu niet verwerken. Probeer het zo nog eens.",
			TryAgain:      "Ik kwam niet tot een antwoord. Probeer het nog eens.",
			PromptForText: "Stuur me een tekstbericht.",
		},
		"de": {
			Help:          "Hallo! Schick mir eine Nachricht und ich antworte. Mit /lang wechselst du die Sprache.",
			LangHelp:      "Wähle eine Sprache: %s",
			Confirm:       "Alles klar, ich antworte ab jetzt auf Deutsch.",
			Apology:       "Entschuldigung, das konnte ich gerade nicht verarbeiten. Versuch es gleich noch einmal.",
			TryAgain:      "Mir ist keine Antwort eingefallen. Versuch es bitte noch einmal.",
			PromptForText: "Bitte schick mir eine Textnachricht.",
		},
		"fr": {
			Help:          "Salut ! Envoie-moi un message et je répondrai. Envoie /lang pour changer de langue.",
			LangHelp:      "Choisis une langue : %s",
			Confirm:       "Très bien, je répondrai désormais en français.",
			Apology:       "Désolé, je n'ai pas pu traiter cela pour le moment. Réessaie dans un instant.",
			TryAgain:      "Je n'ai pas trouvé de réponse. Réessaie.",
			PromptForText: "Envoie-moi un message texte.",
		},
		"es": {
			Help:          "¡Hola! Envíame un mensaje y te responderé. Envía /lang para cambiar de idioma.",
			LangHelp:      "Elige un idioma: %s",
			Confirm:       "De acuerdo, a partir de ahora respondo en español.",
			Apology:       "Lo siento, no pude procesar eso ahora. Inténtalo de nuevo en un momento.",
			TryAgain:      "No se me ocurrió una respuesta. Inténtalo otra vez.",
			PromptForText: "Envíame un mensaje de texto.",
		},
	}
}

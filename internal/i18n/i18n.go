// Package i18n maps dialogue message keys and field-prompt templates to
// per-language strings. Switching language is a pure configuration change;
// it never reruns extraction on already-given answers.
package i18n

import (
	"fmt"
	"log/slog"
	"strings"
)

// Language identifies a supported dialogue language.
type Language string

const (
	// LanguageEnglish is the default language.
	LanguageEnglish Language = "en"
	// LanguageSpanish enables Spanish prompts and messages.
	LanguageSpanish Language = "es"
	// LanguageFrench enables French prompts and messages.
	LanguageFrench Language = "fr"
)

// MessageKey identifies one localizable dialogue message.
type MessageKey string

const (
	KeyWelcomeEmpty         MessageKey = "welcome-empty"
	KeyWelcomePrepopulated  MessageKey = "welcome-with-prepopulated"
	KeyAllComplete          MessageKey = "all-complete"
	KeyAcknowledgement      MessageKey = "acknowledgement"
	KeySkipConfirmation     MessageKey = "skip-confirmation"
	KeyValidationErrorCount MessageKey = "validation-error-count"
	KeyDidNotCatch          MessageKey = "did-not-catch"
	KeyFieldHelp            MessageKey = "field-help"
	KeyAskField             MessageKey = "ask-field"
	KeySubmissionFailed     MessageKey = "submission-failed"
	KeyLooksGood            MessageKey = "looks-good"
	KeyNeedUpdate           MessageKey = "need-update"
)

// messageEntry is either a literal string or a formatting function taking
// contextual arguments.
type messageEntry struct {
	literal string
	format  func(args ...any) string
}

var messages = map[Language]map[MessageKey]messageEntry{
	LanguageEnglish: {
		KeyWelcomeEmpty: {literal: "Hi! I'll walk you through this form. You can speak or type your answers, and say \"skip\" to come back to anything later."},
		KeyWelcomePrepopulated: {format: func(args ...any) string {
			return fmt.Sprintf("Welcome back! I filled in a few things I already know:\n%s\nDoes that look right?", joinLines(args))
		}},
		KeyAllComplete:     {literal: "That's everything I needed. You can review your answers and submit whenever you're ready."},
		KeyAcknowledgement: {literal: "Got it."},
		KeySkipConfirmation: {format: func(args ...any) string {
			return fmt.Sprintf("No problem, we'll come back to %s later.", first(args))
		}},
		KeyValidationErrorCount: {format: func(args ...any) string {
			return fmt.Sprintf("There are %v answers that still need attention.", first(args))
		}},
		KeyDidNotCatch: {literal: "Sorry, I didn't catch that. Could you say it again?"},
		KeyFieldHelp: {format: func(args ...any) string {
			return fmt.Sprintf("Let me help you with %s.", first(args))
		}},
		KeyAskField: {format: func(args ...any) string {
			return fmt.Sprintf("What is your %s?", first(args))
		}},
		KeySubmissionFailed: {literal: "Something went wrong while submitting. Your answers are safe, please try again."},
		KeyLooksGood:        {literal: "Looks good"},
		KeyNeedUpdate:       {literal: "Need to update"},
	},
	LanguageSpanish: {
		KeyWelcomeEmpty: {literal: "¡Hola! Te guiaré por este formulario. Puedes hablar o escribir tus respuestas, y decir \"omitir\" para volver a algo más tarde."},
		KeyWelcomePrepopulated: {format: func(args ...any) string {
			return fmt.Sprintf("¡Bienvenido de nuevo! Ya completé algunos datos que conozco:\n%s\n¿Está todo correcto?", joinLines(args))
		}},
		KeyAllComplete:     {literal: "Eso es todo lo que necesitaba. Puedes revisar tus respuestas y enviar cuando quieras."},
		KeyAcknowledgement: {literal: "Entendido."},
		KeySkipConfirmation: {format: func(args ...any) string {
			return fmt.Sprintf("No hay problema, volveremos a %s más tarde.", first(args))
		}},
		KeyValidationErrorCount: {format: func(args ...any) string {
			return fmt.Sprintf("Hay %v respuestas que necesitan atención.", first(args))
		}},
		KeyDidNotCatch: {literal: "Perdona, no te he entendido. ¿Puedes repetirlo?"},
		KeyFieldHelp: {format: func(args ...any) string {
			return fmt.Sprintf("Déjame ayudarte con %s.", first(args))
		}},
		KeyAskField: {format: func(args ...any) string {
			return fmt.Sprintf("¿Cuál es tu %s?", first(args))
		}},
		KeySubmissionFailed: {literal: "Algo salió mal al enviar. Tus respuestas están guardadas, inténtalo de nuevo."},
		KeyLooksGood:        {literal: "Todo correcto"},
		KeyNeedUpdate:       {literal: "Necesito cambiar algo"},
	},
	LanguageFrench: {
		KeyWelcomeEmpty: {literal: "Bonjour ! Je vais vous guider dans ce formulaire. Vous pouvez parler ou écrire vos réponses, et dire « passer » pour y revenir plus tard."},
		KeyWelcomePrepopulated: {format: func(args ...any) string {
			return fmt.Sprintf("Bon retour ! J'ai déjà rempli quelques informations :\n%s\nEst-ce correct ?", joinLines(args))
		}},
		KeyAllComplete:     {literal: "C'est tout ce dont j'avais besoin. Vous pouvez vérifier vos réponses et soumettre quand vous voulez."},
		KeyAcknowledgement: {literal: "C'est noté."},
		KeySkipConfirmation: {format: func(args ...any) string {
			return fmt.Sprintf("Pas de souci, nous reviendrons à %s plus tard.", first(args))
		}},
		KeyValidationErrorCount: {format: func(args ...any) string {
			return fmt.Sprintf("Il reste %v réponses à corriger.", first(args))
		}},
		KeyDidNotCatch: {literal: "Désolé, je n'ai pas compris. Pouvez-vous répéter ?"},
		KeyFieldHelp: {format: func(args ...any) string {
			return fmt.Sprintf("Je vais vous aider avec %s.", first(args))
		}},
		KeyAskField: {format: func(args ...any) string {
			return fmt.Sprintf("Quel est votre %s ?", first(args))
		}},
		KeySubmissionFailed: {literal: "Une erreur s'est produite lors de l'envoi. Vos réponses sont enregistrées, veuillez réessayer."},
		KeyLooksGood:        {literal: "Tout est bon"},
		KeyNeedUpdate:       {literal: "Je dois modifier"},
	},
}

// Localizer resolves message keys and prompts for one language.
type Localizer struct {
	lang Language
}

// New creates a Localizer. Unsupported languages fall back to English.
func New(lang Language) *Localizer {
	if _, ok := messages[lang]; !ok {
		if lang != "" {
			slog.Warn("i18n: unsupported language, falling back to English", "language", lang)
		}
		lang = LanguageEnglish
	}
	return &Localizer{lang: lang}
}

// Language returns the active language.
func (l *Localizer) Language() Language {
	return l.lang
}

// Message resolves a message key with optional contextual arguments.
func (l *Localizer) Message(key MessageKey, args ...any) string {
	entry, ok := messages[l.lang][key]
	if !ok {
		entry, ok = messages[LanguageEnglish][key]
		if !ok {
			slog.Error("i18n: unknown message key", "key", key)
			return string(key)
		}
	}
	if entry.format != nil {
		return entry.format(args...)
	}
	return entry.literal
}

func first(args []any) any {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func joinLines(args []any) string {
	var lines []string
	for _, arg := range args {
		switch v := arg.(type) {
		case []string:
			lines = append(lines, v...)
		default:
			lines = append(lines, fmt.Sprint(v))
		}
	}
	return strings.Join(lines, "\n")
}

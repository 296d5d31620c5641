// Package i18n translates field prompts for the guided dialogue.
package i18n

import "strings"

// knownPrompts rewrites a small dictionary of known English prompt
// sentences into the target language verbatim.
var knownPrompts = map[Language]map[string]string{
	LanguageSpanish: {
		"What is your full name?":          "¿Cuál es tu nombre completo?",
		"What is your email address?":      "¿Cuál es tu dirección de correo electrónico?",
		"What is your phone number?":       "¿Cuál es tu número de teléfono?",
		"What company do you work for?":    "¿Para qué empresa trabajas?",
		"When would you like to go live?":  "¿Cuándo te gustaría empezar?",
		"How large is your team?":          "¿Qué tamaño tiene tu equipo?",
		"Which country are you based in?":  "¿En qué país te encuentras?",
	},
	LanguageFrench: {
		"What is your full name?":          "Quel est votre nom complet ?",
		"What is your email address?":      "Quelle est votre adresse e-mail ?",
		"What is your phone number?":       "Quel est votre numéro de téléphone ?",
		"What company do you work for?":    "Pour quelle entreprise travaillez-vous ?",
		"When would you like to go live?":  "Quand souhaitez-vous commencer ?",
		"How large is your team?":          "Quelle est la taille de votre équipe ?",
		"Which country are you based in?":  "Dans quel pays êtes-vous basé ?",
	},
}

// phraseSubstitutions is the best-effort fallback for prompts outside the
// dictionary: a fixed set of leading-phrase rewrites applied in order.
var phraseSubstitutions = map[Language][][2]string{
	LanguageSpanish: {
		{"What is your", "¿Cuál es tu"},
		{"What is the", "¿Cuál es el"},
		{"When would you like", "¿Cuándo te gustaría"},
		{"How many", "¿Cuántos"},
		{"Please enter", "Por favor ingresa"},
	},
	LanguageFrench: {
		{"What is your", "Quel est votre"},
		{"What is the", "Quel est le"},
		{"When would you like", "Quand souhaitez-vous"},
		{"How many", "Combien de"},
		{"Please enter", "Veuillez saisir"},
	},
}

// TranslatePrompt rewrites a field prompt into the localizer's language.
// Known prompts are translated verbatim; unknown ones get phrase
// substitution as a best-effort fallback, and English passes through.
func (l *Localizer) TranslatePrompt(prompt string) string {
	if l.lang == LanguageEnglish {
		return prompt
	}
	if translated, ok := knownPrompts[l.lang][prompt]; ok {
		return translated
	}
	out := prompt
	for _, sub := range phraseSubstitutions[l.lang] {
		if strings.HasPrefix(out, sub[0]) {
			out = sub[1] + strings.TrimPrefix(out, sub[0])
			break
		}
	}
	return out
}

// RephraseVariants returns alternate phrasings used when the user asks the
// assistant to say a field prompt differently.
func (l *Localizer) RephraseVariants(label string) []string {
	switch l.lang {
	case LanguageSpanish:
		return []string{
			"Dicho de otra forma: ¿me puedes dar tu " + label + "?",
			"Necesito tu " + label + " para continuar.",
			"¿Podrías decirme tu " + label + "?",
		}
	case LanguageFrench:
		return []string{
			"Autrement dit : pouvez-vous me donner votre " + label + " ?",
			"J'ai besoin de votre " + label + " pour continuer.",
			"Pourriez-vous m'indiquer votre " + label + " ?",
		}
	default:
		return []string{
			"Put differently: could you give me your " + label + "?",
			"I still need your " + label + " to continue.",
			"Could you tell me your " + label + "?",
		}
	}
}

// Package i18n holds the short localized messages of the dashboard and
// negotiates the user's language from Accept-Language.
package i18n

import (
	"golang.org/x/text/language"

	"github.com/matthewbaird/casedesk/internal/render"
)

// Default is used when nothing else matches.
const Default = "en"

var supported = []language.Tag{language.English, language.French}

var matcher = language.NewMatcher(supported)

var catalog = map[string]map[string]string{
	"en": {
		"request_failed":     "Something went wrong. Please try again.",
		"validation_failed":  "Some fields need your attention.",
		"not_found":          "Not found.",
		"bad_request":        "The request could not be understood.",
		"unauthorized":       "Please sign in again.",
		"invalid_status":     "Unknown status.",
		"required":           "Required",
		"invalid_number":     "Enter a number",
		"invalid_date":       "Enter a valid date",
		"invalid":            "Invalid value",
		"unsupported_type":   "Unsupported field type",
		"pick_date":          "Pick a date",
		"select_placeholder": "Options are not available",
		"save":               "Save",
		"required_marker":    "required",
		"base_section":       "General",
		"name":               "Name",
		"law_reference":      "Law reference",
		"assigned_user":      "Assigned user",
		"start_date":         "Start date",
		"end_date":           "End date",
		"description":        "Description",
		"new_case":           "New case",
		"new_source":         "New source",
		"edit_case":          "Edit case",
		"edit_source":        "Edit source",
	},
	"fr": {
		"request_failed":     "Une erreur est survenue. Veuillez réessayer.",
		"validation_failed":  "Certains champs demandent votre attention.",
		"not_found":          "Introuvable.",
		"bad_request":        "La requête est invalide.",
		"unauthorized":       "Veuillez vous reconnecter.",
		"invalid_status":     "Statut inconnu.",
		"required":           "Requis",
		"invalid_number":     "Saisissez un nombre",
		"invalid_date":       "Saisissez une date valide",
		"invalid":            "Valeur invalide",
		"unsupported_type":   "Type de champ non pris en charge",
		"pick_date":          "Choisir une date",
		"select_placeholder": "Options indisponibles",
		"save":               "Enregistrer",
		"required_marker":    "obligatoire",
		"base_section":       "Général",
		"name":               "Nom",
		"law_reference":      "Référence légale",
		"assigned_user":      "Utilisateur assigné",
		"start_date":         "Date de début",
		"end_date":           "Date de fin",
		"description":        "Description",
		"new_case":           "Nouveau dossier",
		"new_source":         "Nouvelle source",
		"edit_case":          "Modifier le dossier",
		"edit_source":        "Modifier la source",
	},
}

// Supported reports whether lang has a catalog.
func Supported(lang string) bool {
	_, ok := catalog[lang]
	return ok
}

// Negotiate picks the best supported language for an Accept-Language
// header, or fallback when nothing matches.
func Negotiate(acceptLanguage, fallback string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return fallback
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// T returns the message for code in lang, falling back to the default
// language and then to the code itself.
func T(lang, code string) string {
	if msg, ok := catalog[lang][code]; ok {
		return msg
	}
	if msg, ok := catalog[Default][code]; ok {
		return msg
	}
	return code
}

// Labels returns the renderer labels for lang.
func Labels(lang string) render.Labels {
	return render.Labels{
		Required:          T(lang, "required_marker"),
		PickDate:          T(lang, "pick_date"),
		Unsupported:       T(lang, "unsupported_type"),
		SelectPlaceholder: T(lang, "select_placeholder"),
		Submit:            T(lang, "save"),
	}
}

// Errors localizes a field → code map.
func Errors(lang string, codes map[string]string) map[string]string {
	out := make(map[string]string, len(codes))
	for k, code := range codes {
		out[k] = T(lang, code)
	}
	return out
}

// Package i18n holds the user facing message catalog.
package i18n

import "strings"

// DefaultLang is used when the Accept-Language header names nothing we know.
const DefaultLang = "en"

var messages = map[string]map[string]string{
	"en": {
		"required":              "Required",
		"invalid_date":          "Use the dd/mm/yyyy format",
		"invalid_status":        "Invalid status",
		"invalid_code":          "Verification code must be exactly 8 digits",
		"invalid_code_format":   "Invalid code format",
		"duplicate_code":        "This verification code is already used by another report",
		"invalid_amount":        "Invalid amount",
		"invalid_price":         "Price must be a whole number of 0 or more",
		"forbidden":             "You are not allowed to do that",
		"not_found":             "Not found",
		"unauthorized":          "Please log in",
		"invalid_credentials":   "Invalid login or password",
		"password_too_short":    "Password must be at least 8 characters",
		"password_needs_upper":  "Password must contain an uppercase letter",
		"password_needs_lower":  "Password must contain a lowercase letter",
		"password_needs_digit":  "Password must contain a digit",
		"password_mismatch":     "Passwords do not match",
		"password_incorrect":    "Current password is incorrect",
		"username_taken":        "Username already taken",
		"letters_spaces_only":   "Only letters and spaces are allowed",
		"file_too_large":        "File is too large",
		"unsupported_file_type": "Unsupported file type",
		"invalid_choice":        "Invalid choice",
		"status_updated":        "Status updated",
		"price_updated":         "Price updated",
		"receipt_uploaded":      "Receipt uploaded",
		"request_created":       "Request submitted",
		"profile_updated":       "Profile updated",
		"password_changed":      "Password changed",
		"internal_error":        "Something went wrong",
		"invalid_email":         "Enter a valid email address",
		"validation_failed":     "Please fix the errors below",
		"logged_out":            "You have been logged out",
		"staff_updated":         "Staff access updated",
	},
	"fr": {
		"required":              "Requis",
		"invalid_date":          "Utilisez le format jj/mm/aaaa",
		"invalid_status":        "Statut invalide",
		"invalid_code":          "Le code de vérification doit comporter exactement 8 chiffres",
		"invalid_code_format":   "Format de code invalide",
		"duplicate_code":        "Ce code de vérification est déjà utilisé par un autre rapport",
		"invalid_amount":        "Montant invalide",
		"invalid_price":         "Le prix doit être un entier positif ou nul",
		"forbidden":             "Action non autorisée",
		"not_found":             "Introuvable",
		"unauthorized":          "Veuillez vous connecter",
		"invalid_credentials":   "Identifiant ou mot de passe invalide",
		"password_too_short":    "Le mot de passe doit comporter au moins 8 caractères",
		"password_needs_upper":  "Le mot de passe doit contenir une majuscule",
		"password_needs_lower":  "Le mot de passe doit contenir une minuscule",
		"password_needs_digit":  "Le mot de passe doit contenir un chiffre",
		"password_mismatch":     "Les mots de passe ne correspondent pas",
		"password_incorrect":    "Mot de passe actuel incorrect",
		"username_taken":        "Nom d'utilisateur déjà pris",
		"letters_spaces_only":   "Seules les lettres et les espaces sont autorisés",
		"file_too_large":        "Fichier trop volumineux",
		"unsupported_file_type": "Type de fichier non pris en charge",
		"invalid_choice":        "Choix invalide",
		"status_updated":        "Statut mis à jour",
		"price_updated":         "Prix mis à jour",
		"receipt_uploaded":      "Reçu téléversé",
		"request_created":       "Demande envoyée",
		"profile_updated":       "Profil mis à jour",
		"password_changed":      "Mot de passe modifié",
		"internal_error":        "Une erreur est survenue",
		"invalid_email":         "Saisissez une adresse e-mail valide",
		"validation_failed":     "Veuillez corriger les erreurs ci-dessous",
		"logged_out":            "Vous êtes déconnecté",
		"staff_updated":         "Accès personnel mis à jour",
	},
}

// DetectLanguage picks a supported language from an Accept-Language header.
func DetectLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		base, _, _ := strings.Cut(strings.ToLower(tag), "-")
		if _, ok := messages[base]; ok {
			return base
		}
	}
	return DefaultLang
}

// T translates code into lang, falling back to the default language and
// finally to the code itself.
func T(lang, code string) string {
	if m, ok := messages[lang]; ok {
		if s, ok := m[code]; ok {
			return s
		}
	}
	if s, ok := messages[DefaultLang][code]; ok {
		return s
	}
	return code
}

// Package i18n translates user-facing strings of the browser shell.
package i18n

import (
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Supported lists the languages offered in the user_language preference.
// English must stay first: it is the matcher fallback.
var Supported = []language.Tag{
	language.English,
	language.German,
	language.French,
}

var (
	matcher = language.NewMatcher(Supported)
	cat     = buildCatalog()
)

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	set := func(tag language.Tag, pairs map[string]string) {
		for k, v := range pairs {
			b.SetString(tag, k, v) //nolint:errcheck
		}
	}
	set(language.German, map[string]string{
		"Browser":              "Browser",
		"Display":              "Anzeige",
		"Properties":           "Eigenschaften",
		"Nodes":                "Knoten",
		"Servers":              "Server",
		"Server Groups":        "Servergruppen",
		"Change Password":      "Passwort ändern",
		"Reset Password":       "Passwort zurücksetzen",
		"Recover Password":     "Passwort wiederherstellen",
		"Show system objects?": "Systemobjekte anzeigen?",
		"Email Address":        "E-Mail-Adresse",
		"Login":                "Anmelden",
		"Logout":               "Abmelden",
		"Loading...":           "Wird geladen...",
		"Please wait while the server is loading.": "Bitte warten, der Server wird geladen.",
		"Password":                                "Passwort",
		"New Password":                            "Neues Passwort",
		"Confirm password":                        "Passwort bestätigen",
		"Retype Password":                         "Passwort wiederholen",
		"Forgotten your password?":                "Passwort vergessen?",
		"Incorrect username or password.":         "Falscher Benutzername oder falsches Passwort.",
		"Account is disabled.":                    "Das Konto ist deaktiviert.",
		"Administrator":                           "Administrator",
		"Users":                                   "Benutzer",
		"Error":                                   "Fehler",
		"Statistics":                              "Statistiken",
		"Collection":                              "Sammlung",
		"Password not provided":                   "Kein Passwort angegeben",
		"Passwords do not match":                  "Die Passwörter stimmen nicht überein",
		"Invalid password":                        "Ungültiges Passwort",
		"Email not provided":                      "Keine E-Mail-Adresse angegeben",
		"Invalid email address":                   "Ungültige E-Mail-Adresse",
		"Specified user does not exist":           "Der angegebene Benutzer existiert nicht",
		"Invalid reset password token.":           "Ungültiges Token zum Zurücksetzen des Passworts.",
		"Password must be at least %d characters": "Das Passwort muss mindestens %d Zeichen lang sein",
		"You successfully changed your password.": "Sie haben Ihr Passwort erfolgreich geändert.",
		"Instructions to reset your password have been sent to %s.":  "Anweisungen zum Zurücksetzen Ihres Passworts wurden an %s gesendet.",
		"SMTP Socket error: %s\nYour password has not been changed.": "SMTP-Socket-Fehler: %s\nIhr Passwort wurde nicht geändert.",
		"SMTP error: %s\nYour password has not been changed.":        "SMTP-Fehler: %s\nIhr Passwort wurde nicht geändert.",
		"Error: %s\nYour password has not been changed.":             "Fehler: %s\nIhr Passwort wurde nicht geändert.",
	})
	set(language.French, map[string]string{
		"Browser":              "Navigateur",
		"Display":              "Affichage",
		"Properties":           "Propriétés",
		"Nodes":                "Nœuds",
		"Servers":              "Serveurs",
		"Server Groups":        "Groupes de serveurs",
		"Change Password":      "Changer le mot de passe",
		"Reset Password":       "Réinitialiser le mot de passe",
		"Recover Password":     "Récupérer le mot de passe",
		"Show system objects?": "Afficher les objets système ?",
		"Email Address":        "Adresse e-mail",
		"Login":                "Connexion",
		"Logout":               "Déconnexion",
		"Loading...":           "Chargement...",
		"Please wait while the server is loading.": "Veuillez patienter pendant le chargement du serveur.",
		"Password":                                "Mot de passe",
		"New Password":                            "Nouveau mot de passe",
		"Confirm password":                        "Confirmer le mot de passe",
		"Retype Password":                         "Retapez le mot de passe",
		"Forgotten your password?":                "Mot de passe oublié ?",
		"Incorrect username or password.":         "Nom d'utilisateur ou mot de passe incorrect.",
		"Account is disabled.":                    "Le compte est désactivé.",
		"Administrator":                           "Administrateur",
		"Users":                                   "Utilisateurs",
		"Error":                                   "Erreur",
		"Statistics":                              "Statistiques",
		"Collection":                              "Collection",
		"Password not provided":                   "Mot de passe non fourni",
		"Passwords do not match":                  "Les mots de passe ne correspondent pas",
		"Invalid password":                        "Mot de passe invalide",
		"Email not provided":                      "Adresse e-mail non fournie",
		"Invalid email address":                   "Adresse e-mail invalide",
		"Specified user does not exist":           "L'utilisateur indiqué n'existe pas",
		"Invalid reset password token.":           "Jeton de réinitialisation du mot de passe invalide.",
		"Password must be at least %d characters": "Le mot de passe doit comporter au moins %d caractères",
		"You successfully changed your password.": "Votre mot de passe a été modifié avec succès.",
		"Instructions to reset your password have been sent to %s.":  "Les instructions de réinitialisation de votre mot de passe ont été envoyées à %s.",
		"SMTP Socket error: %s\nYour password has not been changed.": "Erreur de socket SMTP : %s\nVotre mot de passe n'a pas été modifié.",
		"SMTP error: %s\nYour password has not been changed.":        "Erreur SMTP : %s\nVotre mot de passe n'a pas été modifié.",
		"Error: %s\nYour password has not been changed.":             "Erreur : %s\nVotre mot de passe n'a pas été modifié.",
	})
	return b
}

// Match returns the supported language closest to lang, English when nothing
// matches or lang does not parse.
func Match(lang string) language.Tag {
	tag, err := language.Parse(lang)
	if err != nil {
		return language.English
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return language.English
	}
	return Supported[idx]
}

// Translator formats messages for one language.
type Translator struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a translator for the best match of lang.
func New(lang string) *Translator {
	tag := Match(lang)
	return &Translator{tag: tag, printer: message.NewPrinter(tag, message.Catalog(cat))}
}

// T translates key and formats it with args.
func (t *Translator) T(key string, args ...interface{}) string {
	return t.printer.Sprintf(key, args...)
}

// Language returns the base language code, e.g. "en".
func (t *Translator) Language() string {
	base, _ := t.tag.Base()
	return base.String()
}

// LanguageCookie remembers the user's interface language between sessions.
const LanguageCookie = "PGADMIN_LANGUAGE"

// FromRequest picks the language from the language cookie, then the
// Accept-Language header, then fallback.
func FromRequest(r *http.Request, fallback string) *Translator {
	if c, err := r.Cookie(LanguageCookie); err == nil && c.Value != "" {
		return New(c.Value)
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			tag, _, conf := matcher.Match(tags...)
			if conf != language.No {
				return New(tag.String())
			}
		}
	}
	return New(fallback)
}

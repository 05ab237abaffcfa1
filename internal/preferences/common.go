package preferences

import (
	"golang.org/x/text/language/display"

	"github.com/darkden-lab/pgbrowser/internal/i18n"
)

// Default documentation locations.
const (
	DefaultPGHelpPath    = "https://www.postgresql.org/docs/$VERSION$/static/"
	DefaultEDBASHelpPath = "https://www.enterprisedb.com/docs/en/$VERSION$/pg/"
)

// RegisterCommon registers the paths, sqleditor and miscellaneous
// preferences shared across the application.
func RegisterCommon(r *Registry) {
	paths := r.Module("paths")
	paths.Register("help", "pg_help_path", "PostgreSQL Help Path", Text, DefaultPGHelpPath,
		WithCategoryLabel("Help"),
		WithHelp("Path to the PostgreSQL documentation. $VERSION$ is replaced with the major.minor version number."))
	paths.Register("help", "edbas_help_path", "EDB Advanced Server Help Path", Text, DefaultEDBASHelpPath,
		WithCategoryLabel("Help"),
		WithHelp("Path to the EDB Advanced Server documentation. $VERSION$ is replaced with the major.minor version number."))

	editor := r.Module("sqleditor")
	editor.Register("display", "sql_font_size", "Font size", Numeric, 1.0,
		WithCategoryLabel("Display"), WithRange(0.1, 10),
		WithHelp("The font size to use for the SQL text boxes and editors, in em units."))
	editor.Register("Options", "tab_size", "Tab size", Integer, 4, WithRange(2, 8))
	editor.Register("Options", "use_spaces", "Use spaces?", Boolean, false)
	editor.Register("Options", "wrap_code", "Line wrapping?", Boolean, false)
	editor.Register("Options", "insert_pair_brackets", "Insert bracket pairs?", Boolean, true)
	editor.Register("Options", "brace_matching", "Brace matching?", Boolean, true)

	languages := make([]Choice, 0, len(i18n.Supported))
	for _, tag := range i18n.Supported {
		code := i18n.New(tag.String()).Language()
		languages = append(languages, Choice{Label: display.Self.Name(tag), Value: code})
	}
	misc := r.Module("miscellaneous")
	misc.Register("user_language", "user_language", "User language", Options, "en",
		WithCategoryLabel("User language"), WithChoices(languages...))
}

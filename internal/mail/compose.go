package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"text/template"
)

//go:embed templates/*
var templateFS embed.FS

var (
	textTemplates = template.Must(template.ParseFS(templateFS, "templates/*.txt"))
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html"))
)

// Template names understood by Compose.
const (
	ResetInstructions = "reset_instructions"
	ChangeNotice      = "change_notice"
	ResetNotice       = "reset_notice"
)

// Compose renders the text and HTML bodies of the named template.
func Compose(to, subject, name string, data interface{}) (Message, error) {
	msg := Message{To: to, Subject: subject}

	var text bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, name+".txt", data); err != nil {
		return msg, fmt.Errorf("failed to render %s text: %w", name, err)
	}
	var html bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, name+".html", data); err != nil {
		return msg, fmt.Errorf("failed to render %s html: %w", name, err)
	}

	msg.Text = text.String()
	msg.HTML = html.String()
	return msg, nil
}

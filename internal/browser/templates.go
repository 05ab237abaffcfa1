package browser

import (
	"bytes"
	"embed"
	"encoding/json"
	htmltemplate "html/template"
	"io"
	"path"
	"text/template"
)

//go:embed templates
var templateFS embed.FS

var scriptFuncs = template.FuncMap{
	"json": func(v interface{}) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}

func parseText(name string) *template.Template {
	return template.Must(template.New(path.Base(name)).Funcs(scriptFuncs).ParseFS(templateFS, "templates/"+name))
}

func parsePage(name string) *htmltemplate.Template {
	return htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/"+name, "templates/field.html"))
}

var (
	utilsJS      = parseText("js/utils.js")
	endpointsJS  = parseText("js/endpoints.js")
	errorJS      = parseText("js/error.js")
	nodeJS       = parseText("js/node.js")
	messagesJS   = parseText("js/messages.js")
	collectionJS = parseText("js/collection.js")
	browserCSS   = parseText("css/browser.css")
	nodeCSS      = parseText("css/node.css")
	upgradeHTML  = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/upgrade.html"))

	indexPage          = parsePage("index.html")
	changePasswordPage = parsePage("change_password.html")
	forgotPasswordPage = parsePage("forgot_password.html")
	resetPasswordPage  = parsePage("reset_password.html")
)

type executor interface {
	Execute(w io.Writer, data interface{}) error
}

func render(t executor, data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	err := t.Execute(&buf, data)
	return buf.Bytes(), err
}

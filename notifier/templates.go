package notifier

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"os"
	texttemplate "text/template"
	"time"

	"github.com/gammadia/freetier/acquirer"
	sprig "github.com/go-task/slim-sprig/v3"
)

//go:embed templates
var templates embed.FS

// RerunCommand is suggested to the operator in failure messages.
var RerunCommand = "freetier run"

type templateData struct {
	acquirer.Notification
	Sent    time.Time
	Command string
}

// loadCreatedTemplate parses the created email template, from path when set.
func loadCreatedTemplate(path string) (*htmltemplate.Template, error) {
	tmpl := htmltemplate.New("created.html").Funcs(sprig.HtmlFuncMap())
	if path == "" {
		return tmpl.ParseFS(templates, "templates/created.html")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read email template: %w", err)
	}
	return tmpl.Parse(string(content))
}

var failedTemplate = texttemplate.Must(
	texttemplate.New("failed.txt").Funcs(sprig.TxtFuncMap()).ParseFS(templates, "templates/failed.txt"),
)

// FailureReport renders the message shown to the operator after an
// unhandled error.
func FailureReport(text string) string {
	var buf bytes.Buffer
	data := templateData{Notification: acquirer.Notification{Kind: acquirer.NotificationFailed, Text: text}, Command: RerunCommand}
	if err := failedTemplate.Execute(&buf, data); err != nil {
		return text
	}
	return buf.String()
}

package notifier

import (
	"bytes"
	"html/template"
	"path/filepath"
	"time"

	"reportnotifier/internal/model"
)

// Leader and signature are authored HTML from the report table and are
// rendered unescaped; everything else is escaped.
var bodyTemplate = template.Must(template.New("body").Parse(
	`{{.Leader}} <br/><br/>` +
		`The following report (attached) was generated by {{.GeneratedBy}} on {{.Date}}: <br/> ` +
		`{{range .Descriptions}}<blockquote><strong>{{.}}</strong></blockquote> {{end}}` +
		`<blockquote>Attached files:</blockquote> ` +
		`{{range .Files}}<blockquote><blockquote>{{.Name}}{{if .Description}} &ndash; {{.Description}}{{end}}</blockquote></blockquote>{{end}}` +
		`<br/><br/>` +
		`{{.Signature}}`,
))

type bodyFile struct {
	Name        string
	Description string
}

type bodyData struct {
	Leader       template.HTML
	GeneratedBy  string
	Date         string
	Descriptions []string
	Files        []bodyFile
	Signature    template.HTML
}

// RenderBody builds the HTML body for files generated at now.
func RenderBody(settings model.EmailSettings, generatedBy string, now time.Time, files []model.ExportedFile) (string, error) {
	data := bodyData{
		Leader:      template.HTML(settings.MsgLeader),
		GeneratedBy: generatedBy,
		Date:        now.Format("02/01/2006"),
		Signature:   template.HTML(settings.MsgSig),
	}

	seen := make(map[string]bool)
	for _, f := range files {
		data.Files = append(data.Files, bodyFile{
			Name:        filepath.Base(f.Path),
			Description: f.Description,
		})
		if f.Description != "" && !seen[f.Description] {
			seen[f.Description] = true
			data.Descriptions = append(data.Descriptions, f.Description)
		}
	}

	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Subject formats "<report name> - <timestamp>".
func Subject(reportName string, now time.Time) string {
	return reportName + " - " + now.Format("2006-01-02 15:04:05.000000")
}

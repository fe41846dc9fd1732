package email

import (
	_ "embed"
	"html/template"
	"strings"
)

var (
	//go:embed disruption.html
	disruptionHTML     string
	disruptionTemplate = template.Must(template.New("disruption.html").Parse(disruptionHTML))
)

func mustFillTemplate(tmpl *template.Template, values any) string {
	buf := new(strings.Builder)
	err := tmpl.Execute(buf, values)
	if err != nil {
		return ""
	}
	return buf.String()
}

type DisruptionEmailFormat struct {
	Title string
	Body  string
}

func (ef *DisruptionEmailFormat) Subject() string {
	return "Info trafic: " + ef.Title
}

func (ef *DisruptionEmailFormat) Text() string {
	return ef.Title + "\n\n" + ef.Body
}

func (ef *DisruptionEmailFormat) HTML() string {
	return mustFillTemplate(disruptionTemplate, ef)
}

// Paragraphs splits the plain-text body on line breaks for the template.
func (ef *DisruptionEmailFormat) Paragraphs() []string {
	return strings.Split(ef.Body, "\n")
}

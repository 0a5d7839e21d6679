package publishrepository

import (
	"bytes"
	"fmt"
	"text/template"
)

var readmeTemplates = map[int]*template.Template{
	1: template.Must(template.New("readme-round-1").Parse(`# {{.Name}}

## Summary

This repository was generated automatically from the following brief:

> {{.Brief}}

The application is a single self-contained ` + "`index.html`" + ` served with GitHub Pages.

## Live site

{{.PagesURL}}

## Setup

No build step is required. Clone the repository and open ` + "`index.html`" + ` in a browser,
or serve the directory with any static file server.
{{- if .Files}}

## Files

- ` + "`index.html`" + `: the application
{{- range .Files}}
- ` + "`{{.}}`" + `: attachment provided with the brief
{{- end}}
{{- end}}

## License

MIT License, see [LICENSE](LICENSE).
`)),
	2: template.Must(template.New("readme-round-2").Parse(`# {{.Name}} (revised)

## Summary

This application was first generated from the brief:

> {{.PriorBrief}}

## Revision

It was then revised to address:

> {{.Brief}}

The revision was applied in place to the existing ` + "`index.html`" + `.

## Live site

{{.PagesURL}}

## Setup

No build step is required. Clone the repository and open ` + "`index.html`" + ` in a browser,
or serve the directory with any static file server.
{{- if .Files}}

## Files

- ` + "`index.html`" + `: the application
{{- range .Files}}
- ` + "`{{.}}`" + `: attachment provided with the brief
{{- end}}
{{- end}}

## License

MIT License, see [LICENSE](LICENSE).
`)),
}

var licenseTemplate = template.Must(template.New("license").Parse(`MIT License

Copyright (c) {{.Year}} {{.Author}}

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
`))

type readmeData struct {
	Name       string
	Brief      string
	PriorBrief string
	PagesURL   string
	Files      []string
}

func renderReadme(round int, data readmeData) (string, error) {
	tmpl, ok := readmeTemplates[round]
	if !ok {
		return "", fmt.Errorf("no readme template for round %d", round)
	}
	if data.PriorBrief == "" {
		data.PriorBrief = "(not recorded)"
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render readme: %w", err)
	}
	return buf.String(), nil
}

func renderLicense(author string, year int) (string, error) {
	var buf bytes.Buffer
	err := licenseTemplate.Execute(&buf, struct {
		Author string
		Year   int
	}{Author: author, Year: year})
	if err != nil {
		return "", fmt.Errorf("render license: %w", err)
	}
	return buf.String(), nil
}

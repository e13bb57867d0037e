package export

const entryTemplate = `---
{{.FrontMatter}}---

{{.Body}}

## Validation

Composite score {{printf "%.1f" .Score}} ({{.Tier}}) after {{.Attempts}} attempt{{if ne .Attempts 1}}s{{end}}.

{{if .Findings}}{{range .Findings}}- **{{.Severity}}**{{if .Dimension}} {{.Dimension}}{{end}}: {{.Issue}}{{if .Suggestion}} ({{.Suggestion}}){{end}}
{{end}}{{else}}No outstanding findings.
{{end}}`

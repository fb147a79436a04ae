package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"

	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/model"
)

//go:embed templates/report.html.tmpl
var reportTemplate string

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"target": func(c model.NavCall) string {
		if c.Resolved {
			return c.ResolvedTarget
		}
		if t, ok := c.LiteralTarget(); ok {
			return t
		}
		return "(dynamic)"
	},
}).Parse(reportTemplate))

type htmlData struct {
	Report *model.Report
	JSON   template.JS // embedded verbatim into a <script type="application/json"> block
}

// RenderHTML renders the standalone HTML report
func RenderHTML(r *model.Report) ([]byte, error) {
	data, err := Marshal(r)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, htmlData{Report: r, JSON: template.JS(escapeScript(data))}); err != nil {
		return nil, fmt.Errorf("render html report: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveHTML renders the report and writes it to path atomically
func SaveHTML(path string, r *model.Report) error {
	data, err := RenderHTML(r)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// escapeScript keeps "</script>" and friends inside names from closing the data block
func escapeScript(data []byte) []byte {
	data = bytes.ReplaceAll(data, []byte("<"), []byte(`\u003c`))
	data = bytes.ReplaceAll(data, []byte(">"), []byte(`\u003e`))
	return bytes.ReplaceAll(data, []byte("&"), []byte(`\u0026`))
}

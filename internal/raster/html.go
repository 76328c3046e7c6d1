package raster

import (
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/0xV8/orderbuddy-main/internal/receipt"
)

//go:embed templates/receipt.html
var templatesFS embed.FS

const defaultTemplate = "templates/receipt.html"

// qrPixels is the size of the generated QR image; CSS scales it on the page.
const qrPixels = 256

// Helper functions for the receipt template
var templateFuncs = template.FuncMap{
	"lineClass": func(l receipt.Line) string {
		if l.QR != "" {
			return "line qr"
		}
		classes := []string{"line"}
		switch l.Align {
		case receipt.AlignCenter:
			classes = append(classes, "center")
		case receipt.AlignRight:
			classes = append(classes, "right")
		}
		if l.Bold {
			classes = append(classes, "bold")
		}
		if l.Double {
			classes = append(classes, "double")
		}
		return strings.Join(classes, " ")
	},
	"qrImage": qrImage,
}

// qrImage encodes data as a PNG data URL. An empty result makes the
// template print the link as text instead.
func qrImage(data string) template.URL {
	png, err := qrcode.Encode(data, qrcode.Medium, qrPixels)
	if err != nil {
		return ""
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
}

type htmlPage struct {
	Width    int
	FontSize int
	Lines    []receipt.Line
}

// LoadTemplate parses the receipt template at path, or the built-in one
// when path is empty.
func LoadTemplate(path string) (*template.Template, error) {
	if path == "" {
		tmpl, err := template.New(filepath.Base(defaultTemplate)).Funcs(templateFuncs).ParseFS(templatesFS, defaultTemplate)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template: %w", err)
		}
		return tmpl, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	tmpl, err := template.New(filepath.Base(path)).Funcs(templateFuncs).ParseFiles(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return tmpl, nil
}

// RenderHTML writes doc as an HTML page width pixels wide. The font size is
// chosen so doc.Columns monospace characters fill one row.
func RenderHTML(w io.Writer, tmpl *template.Template, doc receipt.Document, width int) error {
	cols := doc.Columns
	if cols <= 0 {
		cols = receipt.DefaultColumns
	}
	p := htmlPage{
		Width: width,
		// monospace advance is roughly 0.6em
		FontSize: width * 5 / (3 * cols),
		Lines:    doc.Lines,
	}
	if err := tmpl.Execute(w, p); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

// Helper for encoding HTML into a data URL
func urlEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

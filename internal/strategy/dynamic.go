package strategy

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/anandb/mockrelay/internal/model"
	"github.com/anandb/mockrelay/internal/templating"
)

// extensionContentTypes is the fixed mapping from spec §4.7.2.
var extensionContentTypes = map[string]string{
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".json": "application/json",
	".xml":  "application/xml",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

// Dynamic is the priority-10 strategy (spec §4.7.2): it serves a file
// resolved from a templated prefix, or renders the expectation body as a
// template.
type Dynamic struct{}

func (Dynamic) Priority() int { return 10 }

func (Dynamic) Supports(exp model.Expectation) bool {
	if exp.Response.File != "" {
		return true
	}
	return templating.LooksLikeTemplate(exp.Response.Body)
}

func (Dynamic) Handle(req *http.Request, exp model.Expectation, ctx RequestContext) HttpResponse {
	if exp.Response.File != "" {
		return handleFile(exp, ctx)
	}
	return handleTemplateBody(exp, ctx)
}

func handleTemplateBody(exp model.Expectation, ctx RequestContext) HttpResponse {
	rendered, err := templating.Render(exp.Response.Body, ctx.TemplateContext())
	if err != nil {
		return templateErrorResponse(err)
	}
	return HttpResponse{
		StatusCode: exp.Response.StatusCode,
		Headers:    exp.Response.Headers,
		Body:       []byte(rendered),
	}
}

func handleFile(exp model.Expectation, ctx RequestContext) HttpResponse {
	rendered, err := templating.Render(exp.Response.File, ctx.TemplateContext())
	if err != nil {
		return templateErrorResponse(err)
	}
	prefix := strings.TrimSpace(rendered)

	dir := filepath.Dir(prefix)
	base := filepath.Base(prefix)
	if prefix == "" || prefix == "." {
		dir = "."
		base = ""
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return HttpResponse{StatusCode: 404, Body: []byte("File not found: " + prefix)}
	}

	var match string
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.HasPrefix(entry.Name(), base) {
			match = filepath.Join(dir, entry.Name())
			break
		}
		if !entry.Type().IsRegular() && strings.HasPrefix(entry.Name(), base) && match == "" {
			// Remember a non-regular match so we can return the 400 case
			// below if no regular file also matches.
			match = filepath.Join(dir, entry.Name())
		}
	}
	if match == "" {
		return HttpResponse{StatusCode: 404, Body: []byte("File not found: " + prefix)}
	}

	info, err := os.Stat(match)
	if err != nil {
		return HttpResponse{StatusCode: 500, Body: []byte(fmt.Sprintf("error reading file: %v", err))}
	}
	if !info.Mode().IsRegular() {
		return HttpResponse{StatusCode: 400, Body: []byte("not a regular file: " + match)}
	}

	f, err := os.Open(match)
	if err != nil {
		return HttpResponse{StatusCode: 500, Body: []byte(fmt.Sprintf("error reading file: %v", err))}
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return HttpResponse{StatusCode: 500, Body: []byte(fmt.Sprintf("error reading file: %v", err))}
	}

	fileName := filepath.Base(match)
	contentType := extensionContentTypes[strings.ToLower(filepath.Ext(fileName))]
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return HttpResponse{
		StatusCode: 200,
		Headers: []model.Header{
			{Name: "Content-Type", Value: contentType},
			{Name: "Content-Disposition", Value: fmt.Sprintf(`attachment; filename="%s"`, fileName)},
		},
		Body: data,
	}
}

func templateErrorResponse(err error) HttpResponse {
	return HttpResponse{
		StatusCode: 500,
		Body:       []byte("Error processing template: " + err.Error()),
	}
}

package strategy

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anandb/mockrelay/internal/model"
)

func TestDynamicSupportsFileField(t *testing.T) {
	d := Dynamic{}
	assert.True(t, d.Supports(model.Expectation{Response: model.ResponseSpec{File: "/tmp/x"}}))
}

func TestDynamicSupportsTemplateBody(t *testing.T) {
	d := Dynamic{}
	assert.True(t, d.Supports(model.Expectation{Response: model.ResponseSpec{Body: "Hello ${name}"}}))
	assert.False(t, d.Supports(model.Expectation{Response: model.ResponseSpec{Body: "plain"}}))
}

func TestDynamicHandleTemplateBody(t *testing.T) {
	d := Dynamic{}
	exp := model.Expectation{Response: model.ResponseSpec{
		StatusCode: 200,
		Body:       "Hello ${pathVariables.id} / ${headers['X-Who']}",
	}}
	ctx := RequestContext{
		Headers:       http.Header{"X-Who": []string{"ada"}},
		PathVariables: map[string]string{"id": "42"},
	}
	resp := d.Handle(nil, exp, ctx)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Hello 42 / ada", string(resp.Body))
}

func TestDynamicHandleTemplateErrorReturns500(t *testing.T) {
	d := Dynamic{}
	exp := model.Expectation{Response: model.ResponseSpec{Body: "${missing}"}}
	resp := d.Handle(nil, exp, RequestContext{})
	assert.Equal(t, 500, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "Error processing template")
}

func TestDynamicHandleFileResolvesPrefix(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "q1.pdf"), []byte("PDFDATA"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.pdf"), []byte("X"), 0644))

	d := Dynamic{}
	exp := model.Expectation{Response: model.ResponseSpec{File: filepath.Join(dir, "q")}}
	resp := d.Handle(nil, exp, RequestContext{})
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "PDFDATA", string(resp.Body))

	var contentType, disposition string
	for _, h := range resp.Headers {
		switch h.Name {
		case "Content-Type":
			contentType = h.Value
		case "Content-Disposition":
			disposition = h.Value
		}
	}
	assert.Equal(t, "application/pdf", contentType)
	assert.Equal(t, `attachment; filename="q1.pdf"`, disposition)
}

func TestDynamicHandleFileNotFound(t *testing.T) {
	dir := t.TempDir()
	d := Dynamic{}
	exp := model.Expectation{Response: model.ResponseSpec{File: filepath.Join(dir, "q")}}
	resp := d.Handle(nil, exp, RequestContext{})
	assert.Equal(t, 404, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "File not found")
}

func TestDynamicHandleFileIsDirectoryReturns400(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "qsubdir"), 0755))

	d := Dynamic{}
	exp := model.Expectation{Response: model.ResponseSpec{File: filepath.Join(dir, "q")}}
	resp := d.Handle(nil, exp, RequestContext{})
	assert.Equal(t, 400, resp.StatusCode)
}

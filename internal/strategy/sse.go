package strategy

import (
	"net/http"
	"strings"

	"github.com/anandb/mockrelay/internal/model"
)

// SSE is the priority-20 strategy (spec §4.7.3). It batches the
// expectation's configured messages into a single text/event-stream
// body; spec's stated non-goal is timed delivery, so Interval is recorded
// in the model but never scheduled.
type SSE struct{}

func (SSE) Priority() int { return 20 }

func (SSE) Supports(exp model.Expectation) bool {
	return exp.Request.SSE && len(exp.Response.Messages) > 0
}

func (SSE) Handle(req *http.Request, exp model.Expectation, ctx RequestContext) HttpResponse {
	var body strings.Builder
	for _, msg := range exp.Response.Messages {
		body.WriteString("data: ")
		body.WriteString(msg)
		body.WriteString("\n\n")
	}

	status := exp.Response.StatusCode
	if status == 0 {
		status = 200
	}

	headers := []model.Header{
		{Name: "Content-Type", Value: "text/event-stream"},
		{Name: "Cache-Control", Value: "no-cache"},
		{Name: "Connection", Value: "keep-alive"},
	}
	headers = append(headers, exp.Response.Headers...)

	return HttpResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       []byte(body.String()),
	}
}

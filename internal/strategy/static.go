package strategy

import (
	"net/http"

	"github.com/anandb/mockrelay/internal/model"
)

// Static is the priority-0 fallback strategy (spec §4.7.1): it answers
// with the expectation's configured statusCode/headers/body verbatim, and
// supports anything not claimed by a higher-priority strategy.
type Static struct{}

func (Static) Priority() int { return 0 }

func (Static) Supports(exp model.Expectation) bool { return true }

func (Static) Handle(req *http.Request, exp model.Expectation, ctx RequestContext) HttpResponse {
	return HttpResponse{
		StatusCode: exp.Response.StatusCode,
		Headers:    exp.Response.Headers,
		Body:       []byte(exp.Response.Body),
	}
}

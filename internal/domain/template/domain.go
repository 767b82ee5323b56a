package template

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Template struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	EventType string    `json:"event_type"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	HTMLBody  string    `json:"html_body,omitempty"`
	Variables []string  `json:"variables,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Rendered struct {
	Subject  string
	Body     string
	HTMLBody string
}

// Render substitutes {{var}} placeholders from vars into the subject and
// bodies. Placeholders without a matching variable are left intact.
func (t *Template) Render(vars map[string]any) Rendered {
	return Rendered{
		Subject:  substitute(t.Subject, vars),
		Body:     substitute(t.Body, vars),
		HTMLBody: substitute(t.HTMLBody, vars),
	}
}

func substitute(s string, vars map[string]any) string {
	if s == "" || len(vars) == 0 {
		return s
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", fmt.Sprint(v))
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

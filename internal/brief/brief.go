// Package brief composes the daily summary from already-fetched feed data.
package brief

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"

	"github.com/kjstillabower/glancecast/internal/completion"
	"github.com/kjstillabower/glancecast/internal/models"
	"github.com/kjstillabower/glancecast/internal/observability"
	"github.com/kjstillabower/glancecast/internal/schema"
)

var (
	// ErrMissingData is returned when any of the three feed texts is empty.
	ErrMissingData = errors.New("brief input incomplete")
	// ErrNoBrief is returned when the model produced no usable brief.
	ErrNoBrief = errors.New("model produced no brief")
)

var promptTemplate = template.Must(template.New("brief").Parse(
	`You are an AI assistant that generates personalized daily briefs.

Summarize the key information from the weather, news, and stock updates provided below, and create a brief summary of the most relevant information for the day. Focus on information that is important or requires action.

Weather: {{.Weather}}
News: {{.News}}
Stocks: {{.Stocks}}
`))

// Composer turns a BriefInput into prose through one completion call.
type Composer struct {
	model completion.Model
}

func NewComposer(model completion.Model) *Composer {
	return &Composer{model: model}
}

// Prompt renders the fixed brief prompt for in.
func Prompt(in models.BriefInput) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, in); err != nil {
		return "", fmt.Errorf("render brief prompt: %w", err)
	}
	return buf.String(), nil
}

// Compose returns the brief text. Incomplete input is rejected before any call.
func (c *Composer) Compose(ctx context.Context, in models.BriefInput) (string, error) {
	if !in.Complete() {
		observability.BriefsComposedTotal.WithLabelValues("missing_data").Inc()
		return "", ErrMissingData
	}

	prompt, err := Prompt(in)
	if err != nil {
		observability.BriefsComposedTotal.WithLabelValues("error").Inc()
		return "", err
	}

	raw, err := c.model.Generate(ctx, completion.Request{
		Name:     "brief",
		Prompt:   prompt,
		Contract: schema.Brief(),
	})
	if err != nil {
		observability.BriefsComposedTotal.WithLabelValues("error").Inc()
		if errors.Is(err, completion.ErrEmptyOutput) {
			return "", fmt.Errorf("%w: %w", ErrNoBrief, err)
		}
		return "", fmt.Errorf("compose brief: %w", err)
	}

	out, err := schema.Decode[models.Brief](schema.Brief(), raw)
	if err != nil {
		observability.BriefsComposedTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %w", ErrNoBrief, err)
	}
	observability.BriefsComposedTotal.WithLabelValues("success").Inc()
	return out.Brief, nil
}

package provider

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kaptinlin/jsonschema"

	"github.com/pario-ai/askgate/pkg/apierr"
	"github.com/pario-ai/askgate/pkg/models"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	schemaOnce sync.Once
	schemas    map[Kind]*jsonschema.Schema
	schemaErr  error
)

func loadSchemas() (map[Kind]*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		schemas = make(map[Kind]*jsonschema.Schema, 2)
		for _, k := range []Kind{KindChat, KindLive} {
			data, err := schemaFS.ReadFile("schemas/" + string(k) + ".schema.json")
			if err != nil {
				schemaErr = fmt.Errorf("read %s schema: %w", k, err)
				return
			}
			s, err := compiler.Compile(data)
			if err != nil {
				schemaErr = fmt.Errorf("compile %s schema: %w", k, err)
				return
			}
			schemas[k] = s
		}
	})
	return schemas, schemaErr
}

type chatPayload struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type livePayload struct {
	Answer     *string  `json:"answer"`
	Confidence *float64 `json:"confidence"`
	Timestamp  *int64   `json:"timestamp"`
	Sources    []string `json:"sources"`
}

// Parse turns an upstream body into a Candidate. The body is checked
// against the kind's JSON schema before it is decoded; any structural
// problem is a malformed validation error.
func Parse(kind Kind, body []byte) (models.Candidate, error) {
	if !json.Valid(body) {
		return models.Candidate{}, malformed("body is not valid JSON")
	}

	all, err := loadSchemas()
	if err != nil {
		return models.Candidate{}, err
	}
	schema, ok := all[kind]
	if !ok {
		return models.Candidate{}, fmt.Errorf("unknown provider kind %q", kind)
	}
	if result := schema.ValidateJSON(body); !result.IsValid() {
		return models.Candidate{}, malformed(fmt.Sprintf("schema validation failed: %v", result.Errors))
	}

	switch kind {
	case KindLive:
		var p livePayload
		if err := json.Unmarshal(body, &p); err != nil {
			return models.Candidate{}, malformed(err.Error())
		}
		c := models.Candidate{Confidence: p.Confidence, Source: string(kind)}
		if p.Answer != nil {
			c.Text, c.HasText = *p.Answer, true
		}
		if p.Timestamp != nil {
			ts := time.UnixMilli(*p.Timestamp)
			c.Timestamp = &ts
		}
		return c, nil
	default:
		var p chatPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return models.Candidate{}, malformed(err.Error())
		}
		c := models.Candidate{Source: string(kind)}
		if content := p.Choices[0].Message.Content; content != nil {
			c.Text, c.HasText = *content, true
		}
		return c, nil
	}
}

func malformed(detail string) error {
	return apierr.Validation(apierr.ReasonMalformed, "Malformed response: %s", detail)
}

package script

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Section is one narrated block of the video.
type Section struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
	BRoll   string `json:"b_roll"`
}

// Document is the structured script every downstream stage reads.
type Document struct {
	Title    string    `json:"title"`
	Hook     string    `json:"hook"`
	Sections []Section `json:"sections"`
	CTA      string    `json:"cta"`
	Tags     []string  `json:"tags"`
	Shorts   []string  `json:"shorts"`
}

// Narration returns the text the voice stage speaks, in reading order.
func (d Document) Narration() string {
	parts := make([]string, 0, len(d.Sections)+2)
	if hook := strings.TrimSpace(d.Hook); hook != "" {
		parts = append(parts, hook)
	}
	for _, section := range d.Sections {
		if heading := strings.TrimSpace(section.Heading); heading != "" {
			parts = append(parts, heading+".")
		}
		if body := strings.TrimSpace(section.Body); body != "" {
			parts = append(parts, body)
		}
	}
	if cta := strings.TrimSpace(d.CTA); cta != "" {
		parts = append(parts, cta)
	}
	return strings.Join(parts, "\n\n")
}

// WordCount counts whitespace-separated words in the narration.
func (d Document) WordCount() int {
	return len(strings.Fields(d.Narration()))
}

// Load decodes a script.json payload without schema validation.
func Load(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode script: %w", err)
	}
	return doc, nil
}

//go:embed schema.json
var schemaSource []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func documentSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("script.schema.json", bytes.NewReader(schemaSource)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("script.schema.json")
	})
	return compiledSchema, schemaErr
}

// ErrRejected reports that the model declined to write about the topic.
var ErrRejected = errors.New("content_not_allowed")

type rejection struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// Parse validates an LLM reply and decodes it into a Document.
// A reply of the form {"error":"content_not_allowed",...} yields ErrRejected.
func Parse(payload string) (Document, error) {
	var raw any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return Document{}, fmt.Errorf("script reply is not json: %w", err)
	}
	if obj, ok := raw.(map[string]any); ok {
		if _, hasError := obj["error"]; hasError {
			var rej rejection
			_ = json.Unmarshal([]byte(payload), &rej)
			reason := strings.TrimSpace(rej.Reason)
			if reason == "" {
				reason = strings.TrimSpace(rej.Error)
			}
			return Document{}, fmt.Errorf("%w: %s", ErrRejected, reason)
		}
	}
	schema, err := documentSchema()
	if err != nil {
		return Document{}, err
	}
	if err := schema.Validate(raw); err != nil {
		return Document{}, fmt.Errorf("script does not match schema: %w", err)
	}
	return Load([]byte(payload))
}

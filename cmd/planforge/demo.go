package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"planforge/internal/catalog"
)

// demoCatalog registers a small set of operations exercising every
// mutability class: note capture (CREATE), template rendering (READ_ONLY
// with context injection), and sandboxed file writes (MUTATE).
func demoCatalog(sandboxDir string) *catalog.Catalog {
	cat := catalog.New()

	cat.MustRegister(&catalog.OperationDescriptor{
		ID:          "note.store",
		Description: "Capture a note for later steps",
		Params: []catalog.ParameterSpec{
			{Name: "text", Kind: catalog.KindString},
		},
		Invoke: func(_ context.Context, args map[string]any) (any, error) {
			return args["text"], nil
		},
		ResultKey:  "noteText",
		Produces:   []string{"noteText"},
		Mutability: catalog.Create,
		Affinity:   []string{"notes"},
	})

	cat.MustRegister(&catalog.OperationDescriptor{
		ID:          "text.render",
		Description: "Render a template, substituting {{note}} with the captured note",
		Params: []catalog.ParameterSpec{
			{Name: "template", Kind: catalog.KindString},
		},
		Invoke: func(_ context.Context, args map[string]any) (any, error) {
			note, _ := args["noteText"].(string)
			tmpl, _ := args["template"].(string)
			return strings.ReplaceAll(tmpl, "{{note}}", note), nil
		},
		ResultKey:  "renderedText",
		Produces:   []string{"renderedText"},
		Requires:   []string{"noteText"},
		Mutability: catalog.ReadOnly,
	})

	cat.MustRegister(&catalog.OperationDescriptor{
		ID:          "file.write",
		Description: "Write rendered text to a file inside the sandbox",
		Params: []catalog.ParameterSpec{
			{Name: "path", Kind: catalog.KindString},
		},
		Invoke: func(_ context.Context, args map[string]any) (any, error) {
			rel, _ := args["path"].(string)
			content, _ := args["renderedText"].(string)
			target := filepath.Join(sandboxDir, filepath.Clean("/"+rel))
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sandbox dir: %w", err)
			}
			if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
				return nil, err
			}
			return target, nil
		},
		Requires:   []string{"renderedText"},
		Mutability: catalog.Mutate,
		Affinity:   []string{"fs"},
	})

	return cat
}

// demoPlanJSON is the canned response the static provider replays. It walks
// the demo catalog end to end: capture, render, write.
const demoPlanJSON = "```json" + `
{
  "message": "Capture a note, render it, and write the result to disk",
  "steps": [
    {
      "id": "capture",
      "actionId": "note.store",
      "description": "Capture the demo note",
      "parameters": {"text": "hello from planforge"}
    },
    {
      "id": "render",
      "actionId": "text.render",
      "description": "Render the greeting template",
      "parameters": {"template": "NOTE: {{note}}"}
    },
    {
      "id": "persist",
      "actionId": "file.write",
      "description": "Write the rendered note into the sandbox",
      "parameters": {"path": "note.txt"}
    }
  ]
}
` + "```"

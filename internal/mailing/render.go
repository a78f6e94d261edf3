package mailing

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/ignite/mailblast/internal/pkg/logger"
)

// Renderer personalizes templates against a row of tabular data.
//
// Two syntaxes are supported. Simple `{field}` placeholders are replaced
// verbatim, and unknown placeholders are left untouched. Templates using
// Liquid syntax (`{{ field }}`, `{% if %}`) are rendered with the Liquid
// engine, which adds filters like `{{ first_name | default: "Friend" }}`.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // template source -> *liquid.Template
}

// NewRenderer creates a renderer with the custom filters registered.
func NewRenderer() *Renderer {
	engine := liquid.NewEngine()

	engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		s := fmt.Sprintf("%v", value)
		if s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	return &Renderer{engine: engine}
}

// Render personalizes one template against one row.
func (r *Renderer) Render(tpl string, row map[string]string) string {
	if isLiquid(tpl) {
		out, err := r.renderLiquid(tpl, row)
		if err == nil {
			return out
		}
		logger.Warn("liquid render failed, falling back to placeholders", "error", err)
	}
	return Personalize(tpl, row)
}

func (r *Renderer) renderLiquid(tpl string, row map[string]string) (string, error) {
	var parsed *liquid.Template
	if cached, ok := r.cache.Load(tpl); ok {
		parsed = cached.(*liquid.Template)
	} else {
		p, err := r.engine.ParseString(tpl)
		if err != nil {
			return "", err
		}
		r.cache.Store(tpl, p)
		parsed = p
	}

	bindings := make(map[string]interface{}, len(row))
	for k, v := range row {
		bindings[k] = v
	}
	return parsed.RenderString(bindings)
}

func isLiquid(tpl string) bool {
	return strings.Contains(tpl, "{{") || strings.Contains(tpl, "{%")
}

// Personalize replaces `{field}` placeholders with row values. Placeholders
// with no matching field are left verbatim.
func Personalize(tpl string, row map[string]string) string {
	out := tpl
	for key, value := range row {
		out = strings.ReplaceAll(out, "{"+key+"}", value)
	}
	return out
}

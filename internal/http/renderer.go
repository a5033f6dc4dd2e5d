package httpx

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"
)

// TemplateRenderer renders HTML templates for UI responses.
type TemplateRenderer struct {
	t      *template.Template
	logger *slog.Logger
}

// TemplateRendererConfig holds configuration for creating a TemplateRenderer.
type TemplateRendererConfig struct {
	TemplateFS fs.FS        // Filesystem containing templates (required)
	Logger     *slog.Logger // Logger for template errors (optional)
}

// NewTemplateRenderer parses layout and page templates from cfg.TemplateFS.
func NewTemplateRenderer(cfg TemplateRendererConfig) (*TemplateRenderer, error) {
	if cfg.TemplateFS == nil {
		return nil, errors.New("TemplateFS is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "template_renderer")
	}

	var t *template.Template
	funcs := template.FuncMap{
		"renderSection": func(page string, data any) (template.HTML, error) {
			var buf bytes.Buffer
			if err := t.ExecuteTemplate(&buf, ContentTemplateFor(page), data); err != nil {
				return "", err
			}
			// #nosec G203 - produced by our own html/template set; values were escaped above.
			return template.HTML(buf.String()), nil
		},
		"friendlyTime": func(ts time.Time) string {
			if ts.IsZero() {
				return ""
			}
			return ts.UTC().Format("Jan 2, 2006 15:04 MST")
		},
	}

	var err error
	t, err = template.New("root").Funcs(funcs).ParseFS(cfg.TemplateFS, "*.tmpl", "pages/*.tmpl")
	if err != nil {
		logger.Error("template parsing failed", slog.Any("error", err), slog.String("phase", "initialization"))
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &TemplateRenderer{t: t, logger: logger}, nil
}

// Render writes the page with status. htmx swaps receive only the content fragment.
func (r *TemplateRenderer) Render(w http.ResponseWriter, req *http.Request, status int, data PageData) error {
	name := "layout"
	if WantsPartial(req) {
		name = ContentTemplateFor(data.CurrentPage)
	}

	var buf bytes.Buffer
	if err := r.t.ExecuteTemplate(&buf, name, data); err != nil {
		r.logger.ErrorContext(req.Context(), "template execution failed",
			slog.String("template", name),
			slog.Any("error", err),
		)
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		r.logger.WarnContext(req.Context(), "failed to write rendered template",
			slog.String("template", name),
			slog.Any("error", err),
		)
		return err
	}
	return nil
}

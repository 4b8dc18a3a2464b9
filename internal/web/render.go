package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"html/template"
	"net/http"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/hpungsan/willow/internal/errors"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

var cardPage = template.Must(template.New("card").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Willow avatar</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 0.3rem 0.8rem; text-align: left; }
</style>
</head>
<body>
{{.}}
</body>
</html>
`))

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderError writes a JSON error body with the error's HTTP status.
// Internal error details are not exposed.
func renderError(w http.ResponseWriter, log *zap.Logger, err error) {
	var wErr *errors.WillowError
	if !stderrors.As(err, &wErr) {
		wErr = errors.NewInternal(err)
	}

	errObj := map[string]any{
		"code":    string(wErr.Code),
		"message": wErr.Message,
		"status":  wErr.Status,
	}
	if wErr.Code == errors.ErrInternal {
		log.Error("internal error", zap.Error(err))
		errObj["message"] = "an internal error occurred"
	} else {
		errObj["retryable"] = wErr.Retryable
		if wErr.Details != nil {
			errObj["details"] = wErr.Details
		}
	}
	renderJSON(w, wErr.Status, map[string]any{"error": errObj})
}

// renderMarkdown converts markdown text to HTML using goldmark.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(md) + "</pre>")
	}
	return template.HTML(buf.String())
}

// renderCard writes a markdown avatar card as a standalone HTML page.
func renderCard(w http.ResponseWriter, log *zap.Logger, md string) {
	var buf bytes.Buffer
	if err := cardPage.Execute(&buf, renderMarkdown(md)); err != nil {
		log.Error("template execution error", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

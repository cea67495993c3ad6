package main

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"sqlchat/cmd"
	"sqlchat/internal/apperr"
	"sqlchat/internal/chat"
	"sqlchat/internal/config"
	"sqlchat/internal/llm"
	"sqlchat/internal/present"
)

//go:embed templates/*.html
var templateFS embed.FS

const sessionCookie = "sqlchat_session"

// WebHandler handles HTMX HTML requests
type WebHandler struct {
	rt        *cmd.Runtime
	templates *template.Template
}

// NewWebHandler creates a new WebHandler with parsed templates
func NewWebHandler(rt *cmd.Runtime) *WebHandler {
	tmpl := template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))
	return &WebHandler{rt: rt, templates: tmpl}
}

// messageView is one chat bubble.
type messageView struct {
	Role  string
	Text  string
	Table *present.Table
	Error bool
}

// statusView describes the session's connection for the settings panel.
type statusView struct {
	Connected bool
	Target    string
	Model     string
	Error     string
}

func toMessageViews(msgs []chat.Message) []messageView {
	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, newMessageView(m.Role, m.View()))
	}
	return views
}

func newMessageView(role chat.Role, v present.View) messageView {
	mv := messageView{Role: string(role), Text: v.Text}
	if v.IsTable() {
		mv.Table = v.Table
	}
	return mv
}

func errorView(err error) messageView {
	return messageView{Role: string(chat.RoleAssistant), Text: apperr.UserMessage(err), Error: true}
}

func sessionStatus(s *chat.Session) statusView {
	d, ok := s.Descriptor()
	if !ok {
		return statusView{}
	}
	return statusView{Connected: true, Target: d.Redacted(), Model: s.ModelName()}
}

// session returns the caller's session, issuing a cookie for new ones.
func (h *WebHandler) session(w http.ResponseWriter, r *http.Request) *chat.Session {
	id := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}
	s := h.rt.Sessions.GetOrCreate(id)
	if s.ID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    s.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return s
}

func (h *WebHandler) render(w io.Writer, name string, data any) {
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		logger.Error("Template error", "template", name, "error", err)
		if rw, ok := w.(http.ResponseWriter); ok {
			http.Error(rw, "Internal server error", http.StatusInternalServerError)
		}
	}
}

// ChatPage renders the chat page with the session's history
func (h *WebHandler) ChatPage(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)

	data := map[string]any{
		"Title":     "Chat with SQL DB",
		"Messages":  toMessageViews(s.Messages()),
		"Status":    sessionStatus(s),
		"Providers": []llm.Provider{llm.ProviderGroq, llm.ProviderOpenAI, llm.ProviderAnthropic},
		"Provider":  h.rt.Model.Provider,
		"HasKey":    h.rt.Model.APIKey != "",
	}
	h.render(w, "index.html", data)
}

// Settings connects the session to the database chosen in the settings form and
// returns the status partial.
func (h *WebHandler) Settings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	s := h.session(w, r)

	in := config.Input{
		Mode:         config.Mode(r.FormValue("mode")),
		EmbeddedPath: h.rt.Input.EmbeddedPath,
		Driver:       config.Driver(r.FormValue("driver")),
		Host:         r.FormValue("host"),
		Username:     r.FormValue("username"),
		Password:     r.FormValue("password"),
		Database:     r.FormValue("database"),
	}
	modelCfg, err := formModelConfig(h.rt, r.FormValue("provider"), r.FormValue("api_key"), r.FormValue("model"))
	if err == nil {
		err = h.rt.Dispatcher.Connect(r.Context(), s, in, modelCfg)
	}

	status := sessionStatus(s)
	if err != nil {
		logger.Warn("Settings rejected", "session", s.ID, "kind", string(apperr.KindOf(err)), "error", config.Mask(err.Error()))
		status.Error = apperr.UserMessage(err)
	}
	h.render(w, "status", status)
}

// formModelConfig builds the model settings from user input. A blank key falls back
// to the key configured at startup when the provider matches.
func formModelConfig(rt *cmd.Runtime, provider, apiKey, model string) (llm.Config, error) {
	cfg := rt.Model
	if strings.TrimSpace(provider) != "" {
		p, err := llm.ParseProvider(provider)
		if err != nil {
			return llm.Config{}, err
		}
		if p != cfg.Provider {
			cfg.Provider = p
			cfg.APIKey = llm.APIKeyFromEnv(p, os.LookupEnv)
			cfg.Model = ""
			cfg.BaseURL = ""
		}
	}
	if key := strings.TrimSpace(apiKey); key != "" {
		cfg.APIKey = key
	}
	if m := strings.TrimSpace(model); m != "" {
		cfg.Model = m
	}
	return cfg, nil
}

// Chat answers a question and returns the new message partials
func (h *WebHandler) Chat(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	s := h.session(w, r)
	question := strings.TrimSpace(r.FormValue("q"))
	if question == "" {
		http.Error(w, "Question is required", http.StatusBadRequest)
		return
	}

	views := []messageView{{Role: string(chat.RoleUser), Text: question}}
	answer, err := h.rt.Dispatcher.Ask(r.Context(), s, question, nil)
	if err != nil {
		views = append(views, errorView(err))
	} else {
		views = append(views, newMessageView(chat.RoleAssistant, answer.View))
	}
	h.render(w, "messages", views)
}

// Stream answers a question as server-sent events: "delta" events carry text as it
// is generated, "tool" events report agent steps, and a final "answer" or "error"
// event carries the rendered message.
func (h *WebHandler) Stream(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	question := strings.TrimSpace(r.URL.Query().Get("q"))
	if question == "" {
		http.Error(w, "Question is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var mu sync.Mutex
	send := func(event string, data any) {
		mu.Lock()
		defer mu.Unlock()
		if err := writeEvent(w, event, data); err != nil {
			logger.Debug("SSE write failed", "error", err)
			return
		}
		flusher.Flush()
	}

	answer, err := h.rt.Dispatcher.Ask(r.Context(), s, question, func(e chat.Event) {
		switch e.Kind {
		case chat.EventDelta:
			send("delta", map[string]string{"text": e.Text})
		case chat.EventToolCall:
			send("tool", map[string]string{"tool": e.Tool, "input": e.Input})
		}
	})

	var view messageView
	event := "answer"
	if err != nil {
		event = "error"
		view = errorView(err)
	} else {
		view = newMessageView(chat.RoleAssistant, answer.View)
	}

	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, "message", view); err != nil {
		logger.Error("Template error", "template", "message", "error", err)
	}
	send(event, map[string]any{
		"text": view.Text,
		"html": buf.String(),
	})
}

// Clear resets the conversation to the greeting
func (h *WebHandler) Clear(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	h.rt.Dispatcher.Clear(s)
	h.render(w, "messages", toMessageViews(s.Messages()))
}

func writeEvent(w io.Writer, event string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
	return err
}

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/issuegate/issuegate/pkg/auth"
	"github.com/issuegate/issuegate/pkg/chat"
	"github.com/issuegate/issuegate/pkg/gateway"
	"github.com/issuegate/issuegate/pkg/intent"
	"github.com/issuegate/issuegate/pkg/target"
	"github.com/issuegate/issuegate/pkg/userconfig"
)

// repositoryReferenceType is the Copilot reference type carrying the
// repository the conversation is scoped to.
const repositoryReferenceType = "github.repository"

type chatReference struct {
	Type string `json:"type"`
	Data struct {
		FullName string `json:"full_name"`
	} `json:"data"`
}

type inboundMessage struct {
	Role       string          `json:"role"`
	Content    string          `json:"content"`
	References []chatReference `json:"copilot_references,omitempty"`
}

// createRequest is the body shared by the conversational and explicit
// creation endpoints. On the creation endpoints an explicit title wins
// over anything parsed from messages; the conversational endpoint is
// driven by the latest message.
type createRequest struct {
	Title              string           `json:"title,omitempty"`
	Body               string           `json:"body,omitempty"`
	Assignees          []string         `json:"assignees,omitempty"`
	Labels             []string         `json:"labels,omitempty"`
	RepositoryFullName string           `json:"repositoryFullName,omitempty"`
	Messages           []inboundMessage `json:"messages,omitempty"`
}

type workItemConfigRequest struct {
	Organization string `json:"organization"`
	Project      string `json:"project"`
	Token        string `json:"token"`
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "issuegate: chat-driven issue gateway")
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleConversation serves a full chat-extension turn: create the issue
// the latest user message asks for, then stream a completion acknowledging
// it. Bodies without messages degrade to the explicit creation behavior.
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	cred, err := auth.FromHeader(r.Header)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, badRequestf("failed to decode request body: %v", err))
		return
	}

	latest, ok := latestUserMessage(req.Messages)
	if !ok {
		s.createAndRespond(w, r, cred, req, "")
		return
	}

	// The work-item configuration command is handled inline, without a
	// creation call.
	if cfg, ok := intent.ParseConfig(latest.Content); ok {
		identity, err := s.orchestrator.SaveWorkItemConfig(r.Context(), cred, userconfig.Config{
			Token:        cfg.Token,
			Organization: cfg.Organization,
			Project:      cfg.Project,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"message": fmt.Sprintf("Work item configuration stored for %s.", identity.Handle),
		})
		return
	}

	it := intent.Parse(latest.Content)
	result, coord, err := s.orchestrator.CreateIssue(r.Context(), gateway.CreateRequest{
		Credential:        cred,
		FullName:          req.RepositoryFullName,
		ContextRepository: contextRepository(latest),
		Intent:            it,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	history := make([]chat.Message, 0, len(req.Messages)+1)
	for _, m := range req.Messages {
		history = append(history, chat.Message{Role: m.Role, Content: m.Content})
	}
	history = append(history, chat.Message{
		Role:    "system",
		Content: fmt.Sprintf("An issue titled %q was just created in %s: %s. Confirm this to the user.", it.Title, coord.String(), result.URL),
	})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	cw := &countingWriter{ResponseWriter: w}
	if err := s.chat.StreamCompletion(r.Context(), cred, history, cw); err != nil {
		if cw.n == 0 {
			// Nothing relayed yet; the failure can still become a proper
			// error response.
			w.Header().Del("Content-Type")
			w.Header().Del("Cache-Control")
			s.writeError(w, r, err)
			return
		}
		// Mid-stream failure: cut the stream abruptly and log.
		s.logger.Error("completion stream failed",
			"error", err,
			"target", coord.String(),
		)
	}
}

// countingWriter tracks whether any stream bytes reached the client, so a
// failure before the first chunk can still produce an error response.
type countingWriter struct {
	http.ResponseWriter
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	w.n += int64(n)
	return n, err
}

func (w *countingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// handleCreateIssue serves the explicit creation endpoints, with the
// coordinate optionally bound in the path.
func (s *Server) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	cred, err := auth.FromHeader(r.Header)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, badRequestf("failed to decode request body: %v", err))
		return
	}

	var fullName string
	if owner, repo := chi.URLParam(r, "owner"), chi.URLParam(r, "repo"); owner != "" && repo != "" {
		fullName = owner + "/" + repo
	}

	s.createAndRespond(w, r, cred, req, fullName)
}

// createAndRespond runs the explicit creation flow: intent from explicit
// fields, falling back to parsing the latest message. Without either, an
// explicit title is required.
func (s *Server) createAndRespond(w http.ResponseWriter, r *http.Request, cred auth.Credential, req createRequest, pathFullName string) {
	it, err := explicitIntent(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	fullName := pathFullName
	if fullName == "" {
		fullName = req.RepositoryFullName
	}

	var contextRepo target.Coordinate
	if latest, ok := latestUserMessage(req.Messages); ok {
		contextRepo = contextRepository(latest)
	}

	result, coord, err := s.orchestrator.CreateIssue(r.Context(), gateway.CreateRequest{
		Credential:        cred,
		FullName:          fullName,
		ContextRepository: contextRepo,
		Intent:            it,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message":   fmt.Sprintf("Issue created in %s.", coord.String()),
		"issue_url": result.URL,
	})
}

// handleWorkItemConfig stores the caller's Azure DevOps coordinates and
// token, keyed by the handle their credential resolves to.
func (s *Server) handleWorkItemConfig(w http.ResponseWriter, r *http.Request) {
	cred, err := auth.FromHeader(r.Header)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req workItemConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, badRequestf("failed to decode request body: %v", err))
		return
	}
	if strings.TrimSpace(req.Organization) == "" || strings.TrimSpace(req.Project) == "" || strings.TrimSpace(req.Token) == "" {
		s.writeError(w, r, badRequestf("organization, project and token are all required"))
		return
	}

	identity, err := s.orchestrator.SaveWorkItemConfig(r.Context(), cred, userconfig.Config{
		Token:        req.Token,
		Organization: req.Organization,
		Project:      req.Project,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Work item configuration stored for %s.", identity.Handle),
	})
}

// handleWorkItem files a work item via the alternate backend using the
// caller's stored configuration.
func (s *Server) handleWorkItem(w http.ResponseWriter, r *http.Request) {
	cred, err := auth.FromHeader(r.Header)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, badRequestf("failed to decode request body: %v", err))
		return
	}

	if latest, ok := latestUserMessage(req.Messages); ok {
		if cfg, ok := intent.ParseConfig(latest.Content); ok {
			identity, err := s.orchestrator.SaveWorkItemConfig(r.Context(), cred, userconfig.Config{
				Token:        cfg.Token,
				Organization: cfg.Organization,
				Project:      cfg.Project,
			})
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{
				"message": fmt.Sprintf("Work item configuration stored for %s.", identity.Handle),
			})
			return
		}
	}

	// Same precedence as the creation endpoints: an explicit title wins,
	// message parsing is the fallback.
	it, err := explicitIntent(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.orchestrator.CreateWorkItem(r.Context(), cred, it)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message":       "Work item created.",
		"work_item_url": result.URL,
	})
}

// explicitIntent builds the intent of a message-less request. An explicit
// title is required when there is no text to parse one from.
func explicitIntent(req createRequest) (intent.Intent, error) {
	if strings.TrimSpace(req.Title) == "" {
		if latest, ok := latestUserMessage(req.Messages); ok {
			return intent.Parse(latest.Content), nil
		}
		return intent.Intent{}, gateway.ErrMissingTitle
	}
	return intent.Intent{
		Title:     strings.TrimSpace(req.Title),
		Body:      req.Body,
		Assignees: req.Assignees,
		Labels:    req.Labels,
	}, nil
}

// latestUserMessage returns the last user-role message, falling back to
// the last message of any role.
func latestUserMessage(messages []inboundMessage) (inboundMessage, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i], true
		}
	}
	if len(messages) > 0 {
		return messages[len(messages)-1], true
	}
	return inboundMessage{}, false
}

// contextRepository extracts the repository the conversation is scoped to
// from the message's references, if any.
func contextRepository(m inboundMessage) target.Coordinate {
	for _, ref := range m.References {
		if ref.Type != repositoryReferenceType {
			continue
		}
		coord, err := target.ParseFullName(ref.Data.FullName)
		if err != nil {
			continue
		}
		return coord
	}
	return target.Coordinate{}
}

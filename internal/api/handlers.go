package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/replyflow/replyflow/internal/models"
)

// defaultLogLimit caps the logs endpoint when no limit is given.
const defaultLogLimit = 100

// webhookReply is the response body for the inbound message webhook.
type webhookReply struct {
	Reply      string `json:"reply"`
	Suppressed bool   `json:"suppressed"`
}

// webhookHandler receives inbound messages from the messaging gateway and
// runs them through the reply pipeline.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("api.webhookHandler", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	var in models.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		slog.Error("api.webhookHandler: invalid JSON body", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON body"))
		return
	}

	reply, err := s.engine.Handle(r.Context(), in)
	if err != nil {
		if isValidationError(err) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("api.webhookHandler: pipeline failed", "error", err, "account", in.AccountID, "contact", in.ContactID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(webhookReply{Reply: reply, Suppressed: reply == ""}))
}

// configHandler serves and replaces the per-account automation config.
func (s *Server) configHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("api.configHandler", "method", r.Method)
	switch r.Method {
	case http.MethodGet:
		accountID := r.URL.Query().Get("account_id")
		if accountID == "" {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("account_id parameter is required"))
			return
		}
		cfg, err := s.st.GetAutomationConfig(accountID)
		if err != nil {
			slog.Error("api.configHandler: failed to load config", "error", err, "account", accountID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load config"))
			return
		}
		if cfg == nil {
			def := models.DefaultAutomationConfig(accountID)
			cfg = &def
		}
		writeJSONResponse(w, http.StatusOK, models.Success(cfg))

	case http.MethodPut:
		var cfg models.AutomationConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			slog.Error("api.configHandler: invalid JSON body", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON body"))
			return
		}
		if cfg.AccountID == "" {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrEmptyAccountID.Error()))
			return
		}
		cfg.UpdatedAt = time.Now().UTC()
		if err := s.st.SaveAutomationConfig(cfg); err != nil {
			slog.Error("api.configHandler: failed to save config", "error", err, "account", cfg.AccountID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save config"))
			return
		}
		slog.Info("api.configHandler: config saved", "account", cfg.AccountID)
		s.recordLog(cfg.AccountID, models.LogLevelInfo, "Automation config updated")
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Config saved", cfg))

	default:
		w.Header().Set("Allow", http.MethodGet+", "+http.MethodPut)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
	}
}

// actionsHandler lists actions and applies admin decisions.
func (s *Server) actionsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("api.actionsHandler", "method", r.Method, "path", r.URL.Path)
	actionID := strings.TrimPrefix(r.URL.Path, "/actions")
	actionID = strings.Trim(actionID, "/")

	switch {
	case r.Method == http.MethodGet && actionID == "":
		s.listActions(w, r)
	case r.Method == http.MethodGet:
		s.getAction(w, r, actionID)
	case r.Method == http.MethodPatch && actionID != "":
		s.decideAction(w, r, actionID)
	default:
		w.Header().Set("Allow", http.MethodGet+", "+http.MethodPatch)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
	}
}

func (s *Server) listActions(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("account_id parameter is required"))
		return
	}
	status := models.ActionStatus(r.URL.Query().Get("status"))

	actions, err := s.workflow.List(accountID, status)
	if err != nil {
		if errors.Is(err, models.ErrInvalidActionStatus) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid status filter"))
			return
		}
		slog.Error("api.listActions: failed to list actions", "error", err, "account", accountID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list actions"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(actions))
}

func (s *Server) getAction(w http.ResponseWriter, r *http.Request, actionID string) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("account_id parameter is required"))
		return
	}
	action, err := s.st.GetAction(accountID, actionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Action not found"))
			return
		}
		slog.Error("api.getAction: failed to load action", "error", err, "action", actionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load action"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(action))
}

func (s *Server) decideAction(w http.ResponseWriter, r *http.Request, actionID string) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("account_id parameter is required"))
		return
	}

	var req models.ActionDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("api.decideAction: invalid JSON body", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	action, err := s.workflow.Decide(r.Context(), accountID, actionID, req.Status, req.AdminNote)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Action not found"))
			return
		}
		if errors.Is(err, models.ErrInvalidActionStatus) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("api.decideAction: decision failed", "error", err, "action", actionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to decide action"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Action decided", action))
}

// takeoverHandler reads and flips a conversation's human-takeover flag.
func (s *Server) takeoverHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("api.takeoverHandler", "method", r.Method)
	accountID := r.URL.Query().Get("account_id")
	contactID := r.URL.Query().Get("contact_id")
	if accountID == "" || contactID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("account_id and contact_id parameters are required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		conv, err := s.st.GetConversation(accountID, contactID)
		if err != nil {
			slog.Error("api.takeoverHandler: failed to load conversation", "error", err, "contact", contactID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
			return
		}
		state := models.TakeoverRequest{}
		if conv != nil {
			state.TakenOver = conv.TakenOver
			state.Owner = conv.TakeoverOwner
		}
		writeJSONResponse(w, http.StatusOK, models.Success(state))

	case http.MethodPut:
		var req models.TakeoverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Error("api.takeoverHandler: invalid JSON body", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON body"))
			return
		}
		if err := s.st.SetTakeover(accountID, contactID, req.TakenOver, req.Owner); err != nil {
			slog.Error("api.takeoverHandler: failed to set takeover", "error", err, "contact", contactID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to set takeover"))
			return
		}
		slog.Info("api.takeoverHandler: takeover updated", "account", accountID, "contact", contactID, "taken_over", req.TakenOver)
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Takeover updated", req))

	default:
		w.Header().Set("Allow", http.MethodGet+", "+http.MethodPut)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
	}
}

// conversationsHandler lists an account's conversation summaries.
func (s *Server) conversationsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("api.conversationsHandler", "method", r.Method)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("account_id parameter is required"))
		return
	}
	convs, err := s.st.ListConversations(accountID)
	if err != nil {
		slog.Error("api.conversationsHandler: failed to list conversations", "error", err, "account", accountID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list conversations"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(convs))
}

// messagesHandler returns one conversation's message history. The contact id
// is the final path segment and may be URL-escaped.
func (s *Server) messagesHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("api.messagesHandler", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("account_id parameter is required"))
		return
	}

	contactID := strings.TrimPrefix(r.URL.Path, "/messages/")
	if unescaped, err := url.PathUnescape(contactID); err == nil {
		contactID = unescaped
	}
	if contactID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("contact id is required in path"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid limit parameter"))
			return
		}
		limit = n
	}

	msgs, err := s.st.ListMessages(accountID, contactID, limit)
	if err != nil {
		slog.Error("api.messagesHandler: failed to list messages", "error", err, "contact", contactID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list messages"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(msgs))
}

// knowledgeUploadRequest is the payload for registering a knowledge document.
// Text extraction happens upstream; this service stores plain text only.
type knowledgeUploadRequest struct {
	AccountID string `json:"account_id"`
	Filename  string `json:"filename"`
	Text      string `json:"text"`
}

// knowledgeToggleRequest is the payload for enabling or disabling a document.
type knowledgeToggleRequest struct {
	AccountID string `json:"account_id"`
	Enabled   bool   `json:"enabled"`
}

// knowledgeHandler manages the knowledge documents folded into prompts.
func (s *Server) knowledgeHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("api.knowledgeHandler", "method", r.Method, "path", r.URL.Path)
	docID := strings.TrimPrefix(r.URL.Path, "/knowledge")
	docID = strings.Trim(docID, "/")

	switch {
	case r.Method == http.MethodGet && docID == "":
		s.listKnowledgeDocs(w, r)
	case r.Method == http.MethodPost && docID == "":
		s.addKnowledgeDoc(w, r)
	case r.Method == http.MethodPatch && docID != "":
		s.toggleKnowledgeDoc(w, r, docID)
	case r.Method == http.MethodDelete && docID != "":
		s.deleteKnowledgeDoc(w, r, docID)
	default:
		w.Header().Set("Allow", http.MethodGet+", "+http.MethodPost+", "+http.MethodPatch+", "+http.MethodDelete)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
	}
}

func (s *Server) listKnowledgeDocs(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("account_id parameter is required"))
		return
	}
	docs, err := s.st.ListKnowledgeDocs(accountID)
	if err != nil {
		slog.Error("api.listKnowledgeDocs: failed to list docs", "error", err, "account", accountID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list knowledge documents"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(docs))
}

func (s *Server) addKnowledgeDoc(w http.ResponseWriter, r *http.Request) {
	var req knowledgeUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("api.addKnowledgeDoc: invalid JSON body", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON body"))
		return
	}

	doc := models.KnowledgeDoc{
		ID:        uuid.NewString(),
		AccountID: req.AccountID,
		Filename:  req.Filename,
		Text:      req.Text,
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
	}
	if err := doc.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if err := s.st.AddKnowledgeDoc(doc); err != nil {
		slog.Error("api.addKnowledgeDoc: failed to store doc", "error", err, "account", req.AccountID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store knowledge document"))
		return
	}
	slog.Info("api.addKnowledgeDoc: document stored", "account", req.AccountID, "doc", doc.ID, "filename", doc.Filename)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Knowledge document stored", doc))
}

func (s *Server) toggleKnowledgeDoc(w http.ResponseWriter, r *http.Request, docID string) {
	var req knowledgeToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("api.toggleKnowledgeDoc: invalid JSON body", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON body"))
		return
	}
	if req.AccountID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrEmptyAccountID.Error()))
		return
	}
	if err := s.st.SetKnowledgeDocEnabled(req.AccountID, docID, req.Enabled); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Knowledge document not found"))
			return
		}
		slog.Error("api.toggleKnowledgeDoc: failed to toggle doc", "error", err, "doc", docID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update knowledge document"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Knowledge document updated", nil))
}

func (s *Server) deleteKnowledgeDoc(w http.ResponseWriter, r *http.Request, docID string) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("account_id parameter is required"))
		return
	}
	if err := s.st.DeleteKnowledgeDoc(accountID, docID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Knowledge document not found"))
			return
		}
		slog.Error("api.deleteKnowledgeDoc: failed to delete doc", "error", err, "doc", docID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete knowledge document"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Knowledge document deleted", nil))
}

// sendHandler performs a manual operator send: the message goes out through
// the dispatcher and is recorded as an assistant message.
func (s *Server) sendHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("api.sendHandler", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("api.sendHandler: invalid JSON body", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	if err := s.dispatcher.SendText(r.Context(), req.AccountID, req.ContactID, req.Text); err != nil {
		slog.Error("api.sendHandler: dispatch failed", "error", err, "contact", req.ContactID)
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Failed to send message"))
		return
	}

	now := time.Now().UTC()
	msg := models.Message{
		ID:        uuid.NewString(),
		AccountID: req.AccountID,
		ContactID: req.ContactID,
		Direction: models.DirectionAssistant,
		Text:      req.Text,
		Timestamp: now,
	}
	if err := s.st.AddMessage(msg); err != nil {
		slog.Error("api.sendHandler: failed to record message", "error", err, "contact", req.ContactID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Message sent but not recorded"))
		return
	}
	if err := s.st.UpsertConversation(req.AccountID, req.ContactID, "", req.Text, now); err != nil {
		slog.Error("api.sendHandler: failed to update conversation", "error", err, "contact", req.ContactID)
	}

	slog.Info("api.sendHandler: manual message sent", "account", req.AccountID, "contact", req.ContactID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Message sent", msg))
}

// aiToggleState is the response body for the automation kill switch.
type aiToggleState struct {
	AIEnabled bool `json:"ai_enabled"`
}

// aiToggleHandler flips the account-wide automation kill switch and returns
// the new state.
func (s *Server) aiToggleHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("api.aiToggleHandler", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("account_id parameter is required"))
		return
	}

	cfg, err := s.st.GetAutomationConfig(accountID)
	if err != nil {
		slog.Error("api.aiToggleHandler: failed to load config", "error", err, "account", accountID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load config"))
		return
	}
	if cfg == nil {
		def := models.DefaultAutomationConfig(accountID)
		cfg = &def
	}
	cfg.Enabled = !cfg.Enabled
	cfg.UpdatedAt = time.Now().UTC()
	if err := s.st.SaveAutomationConfig(*cfg); err != nil {
		slog.Error("api.aiToggleHandler: failed to save config", "error", err, "account", accountID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save config"))
		return
	}

	state := "disabled"
	if cfg.Enabled {
		state = "enabled"
	}
	slog.Info("api.aiToggleHandler: automation toggled", "account", accountID, "ai_enabled", cfg.Enabled)
	s.recordLog(accountID, models.LogLevelInfo, "Automation "+state)
	writeJSONResponse(w, http.StatusOK, models.Success(aiToggleState{AIEnabled: cfg.Enabled}))
}

// logsHandler returns an account's persisted event-log entries, newest first.
func (s *Server) logsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("api.logsHandler", "method", r.Method)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("account_id parameter is required"))
		return
	}

	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid limit parameter"))
			return
		}
		limit = n
	}

	entries, err := s.st.ListLogEntries(accountID, limit)
	if err != nil {
		slog.Error("api.logsHandler: failed to list log entries", "error", err, "account", accountID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list logs"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(entries))
}

// recordLog appends an event-log entry, best-effort.
func (s *Server) recordLog(accountID string, level models.LogLevel, message string) {
	entry := models.LogEntry{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Level:     level,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	if err := s.st.AddLogEntry(entry); err != nil {
		slog.Error("api.recordLog: failed to record log entry", "error", err, "account", accountID)
	}
}

// accountStats is the response body for the stats endpoint.
type accountStats struct {
	Conversations  int  `json:"conversations"`
	Messages       int  `json:"messages"`
	TakenOver      int  `json:"taken_over"`
	PendingActions int  `json:"pending_actions"`
	AIEnabled      bool `json:"ai_enabled"`
}

// statsHandler returns rolled-up counters for an account's dashboard.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("api.statsHandler", "method", r.Method)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("account_id parameter is required"))
		return
	}

	convs, err := s.st.ListConversations(accountID)
	if err != nil {
		slog.Error("api.statsHandler: failed to list conversations", "error", err, "account", accountID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to compute stats"))
		return
	}
	pending, err := s.st.ListActions(accountID, models.ActionStatusPending)
	if err != nil {
		slog.Error("api.statsHandler: failed to list actions", "error", err, "account", accountID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to compute stats"))
		return
	}
	cfg, err := s.st.GetAutomationConfig(accountID)
	if err != nil {
		slog.Error("api.statsHandler: failed to load config", "error", err, "account", accountID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to compute stats"))
		return
	}
	aiEnabled := true
	if cfg != nil {
		aiEnabled = cfg.Enabled
	}

	stats := accountStats{Conversations: len(convs), PendingActions: len(pending), AIEnabled: aiEnabled}
	for _, c := range convs {
		stats.Messages += c.MessageCount
		if c.TakenOver {
			stats.TakenOver++
		}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}

// healthHandler is the liveness endpoint.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}

// isValidationError reports whether the pipeline error came from payload
// validation rather than a backend failure.
func isValidationError(err error) bool {
	return errors.Is(err, models.ErrEmptyAccountID) ||
		errors.Is(err, models.ErrEmptyContactID) ||
		errors.Is(err, models.ErrEmptyText) ||
		errors.Is(err, models.ErrTextTooLong)
}

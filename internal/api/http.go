// Package api exposes the agent over HTTP and over a line-delimited
// JSON-RPC stream.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mlukasik/venq/internal/agent"
	"github.com/mlukasik/venq/internal/memory"
	"github.com/mlukasik/venq/internal/tools"
)

const maxBodySize = 1 << 20

type Deps struct {
	Agent    *agent.Agent
	Registry *tools.Registry
}

// NewHandler builds the HTTP surface: health, the raw JSON-RPC endpoint,
// the chat endpoint, direct tool invocation, and feedback submission.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/rpc", handleRPC(deps))
	r.Post("/ask_agent", handleAsk(deps))
	r.Post("/run_tool/{tool}", handleRunTool(deps))
	r.Post("/feedback", handleFeedback(deps))
	r.Delete("/memory/{user_id}", handleClearMemory(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "running"})
}

func handleRPC(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		defer r.Body.Close()

		w.Header().Set("Content-Type", "application/json")

		var req agent.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeRPCError(w, nil, parseErrorCode, "Parse error")
			return
		}

		result, err := deps.Agent.HandleRequest(r.Context(), req)
		if err != nil {
			writeRPCError(w, req.ID, serverErrorCode, err.Error())
			return
		}

		json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
	}
}

type askRequest struct {
	UserID   string        `json:"user_id"`
	Messages []memory.Turn `json:"messages"`
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		defer r.Body.Close()

		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}

		resp, err := deps.Agent.Run(r.Context(), req.UserID, req.Messages)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func handleRunTool(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		defer r.Body.Close()

		name := chi.URLParam(r, "tool")
		tool := deps.Registry.Get(name)
		if tool == nil {
			httpError(w, http.StatusNotFound, "invalid_request_error", "unknown tool: %s", name)
			return
		}

		var args map[string]any
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		out, err := tool.Run(r.Context(), args)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "tool_error", "%v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

type feedbackRequest struct {
	UserID    string `json:"user_id"`
	MessageID string `json:"message_id"`
	Feedback  string `json:"feedback"`
	Score     *int   `json:"score,omitempty"`
}

func handleFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		defer r.Body.Close()

		var req feedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserID == "" || req.MessageID == "" || req.Feedback == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id, message_id and feedback are required")
			return
		}

		out, err := deps.Agent.HandleFeedback(r.Context(), req.UserID, req.MessageID, req.Feedback, req.Score)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "feedback_error", "%v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

func handleClearMemory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "user_id")
		if userID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}

		out, err := deps.Agent.ClearUserData(r.Context(), userID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "memory_error", "%v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

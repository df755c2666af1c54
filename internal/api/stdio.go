package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/mlukasik/venq/internal/agent"
)

const (
	parseErrorCode  = -32700
	serverErrorCode = -32000
)

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// maxLineSize bounds a single stdio request line.
const maxLineSize = 4 << 20

// StdioServer serves the JSON-RPC protocol over a line-delimited stream.
type StdioServer struct {
	agent *agent.Agent
}

func NewStdioServer(a *agent.Agent) *StdioServer {
	return &StdioServer{agent: a}
}

// Serve reads requests line by line until the reader is exhausted or the
// context is canceled. Per-request failures are answered on the stream; the
// loop itself never aborts on them.
func (s *StdioServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	encoder := json.NewEncoder(out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" {
			continue
		}

		var req agent.Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			slog.Error("invalid request line", "error", err)
			encoder.Encode(rpcResponse{
				JSONRPC: "2.0",
				ID:      nil,
				Error:   &rpcError{Code: parseErrorCode, Message: "Parse error"},
			})
			continue
		}

		result, err := s.agent.HandleRequest(ctx, req)
		if req.ID == nil {
			// Notification: no response expected.
			continue
		}
		if err != nil {
			encoder.Encode(rpcResponse{
				JSONRPC: "2.0",
				ID:      req.ID,
				Error:   &rpcError{Code: serverErrorCode, Message: err.Error()},
			})
			continue
		}
		encoder.Encode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
	}
	return scanner.Err()
}

func writeRPCError(w io.Writer, id any, code int, message string) {
	json.NewEncoder(w).Encode(rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	})
}

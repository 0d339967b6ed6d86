// ABOUTME: MCP stdio transport: newline-delimited JSON-RPC on stdin/stdout.
// ABOUTME: One process serves one client, so exactly one session is used.

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/2389/rendezvous-mcp/internal/session"
	"github.com/2389/rendezvous-mcp/internal/tools"
)

// StdioConfig holds configuration for the stdio transport.
type StdioConfig struct {
	Registry *tools.Registry
	Sessions *session.Manager
	Info     ServerInfo
	Logger   *slog.Logger
	Observer ToolCallObserver
}

// StdioServer serves MCP over a pair of streams. Nothing but JSON-RPC
// messages is ever written to the output stream.
type StdioServer struct {
	dispatcher
	sessions *session.Manager
}

// NewStdioServer creates a stdio transport.
func NewStdioServer(cfg StdioConfig) (*StdioServer, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session manager is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StdioServer{
		dispatcher: dispatcher{
			registry: cfg.Registry,
			info:     cfg.Info,
			observer: cfg.Observer,
			logger:   logger,
		},
		sessions: cfg.Sessions,
	}, nil
}

// Serve reads requests from in and writes responses to out until in is
// exhausted or ctx is cancelled. The session is discarded on return.
func (s *StdioServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	sess, err := s.sessions.Create(latestProtocolVersion, "")
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	defer s.sessions.Delete(sess.ID)
	s.logger.Info("MCP stdio session started", "session_id", sess.ID)

	lines := make(chan stdioLine)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		r := bufio.NewReaderSize(in, 64*1024)
		for {
			line, err := readLine(r, MaxRequestBodySize)
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = nil
				}
				readErr <- err
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	enc := json.NewEncoder(out)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("reading stdin: %w", err)
					}
				default:
				}
				s.logger.Info("MCP stdio input closed", "session_id", sess.ID)
				return nil
			}
			resp := s.handleLine(ctx, sess, line)
			if resp == nil {
				continue
			}
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("writing response: %w", err)
			}
		}
	}
}

// stdioLine is one newline-delimited message. Oversized lines are drained
// from the input and arrive with tooLong set and no data.
type stdioLine struct {
	data    []byte
	tooLong bool
}

// readLine reads up to the next newline, keeping at most limit bytes. A
// final line without a trailing newline is returned before io.EOF.
func readLine(r *bufio.Reader, limit int) (stdioLine, error) {
	var line stdioLine
	for {
		chunk, err := r.ReadSlice('\n')
		if !line.tooLong {
			if len(line.data)+len(chunk) > limit+2 {
				line.tooLong = true
				line.data = nil
			} else {
				line.data = append(line.data, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil && (!errors.Is(err, io.EOF) || (len(line.data) == 0 && !line.tooLong)) {
			return stdioLine{}, err
		}
		if !line.tooLong {
			line.data = bytes.TrimRight(line.data, "\r\n")
			if len(line.data) > limit {
				line.tooLong = true
				line.data = nil
			}
		}
		return line, nil
	}
}

func (s *StdioServer) handleLine(ctx context.Context, sess *session.Session, line stdioLine) *JSONRPCResponse {
	if line.tooLong {
		s.logger.Warn("MCP stdio message too large", "session_id", sess.ID, "limit", MaxRequestBodySize)
		return errorResponse(nil, JSONRPCInvalidRequest, "request body too large")
	}
	return s.handleMessage(ctx, sess, line.data)
}

func (s *StdioServer) handleMessage(ctx context.Context, sess *session.Session, line []byte) *JSONRPCResponse {
	if len(bytes.TrimSpace(line)) == 0 {
		return nil
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return errorResponse(nil, JSONRPCParseError, "invalid JSON")
	}
	if req.JSONRPC != "2.0" {
		return errorResponse(req.ID, JSONRPCInvalidRequest, "invalid JSON-RPC version")
	}

	if req.Method == "initialize" {
		if req.isNotification() {
			return nil
		}
		sess.ProtocolVersion = negotiateVersion(req.Params)
		s.logger.Debug("MCP stdio initialize", "protocol_version", sess.ProtocolVersion)
		return resultResponse(req.ID, s.initializeResult(sess))
	}

	return s.dispatch(ctx, sess, req)
}

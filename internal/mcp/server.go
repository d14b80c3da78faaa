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

	"github.com/mattjoyce/dictation/internal/log"
	"github.com/mattjoyce/dictation/internal/metrics"
)

// Info is reported to clients on initialize.
type Info struct {
	Name            string
	Version         string
	ProtocolVersion string
}

// Server answers requests one at a time in arrival order.
type Server struct {
	registry *Registry
	info     Info
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewServer(registry *Registry, info Info, m *metrics.Metrics) *Server {
	return &Server{
		registry: registry,
		info:     info,
		metrics:  m,
		logger:   log.WithComponent("mcp"),
	}
}

type line struct {
	data []byte
	err  error
}

// Serve reads requests from r and writes responses to w until r reaches EOF
// or ctx is cancelled. EOF is a clean shutdown and returns nil.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan line)
	go func() {
		defer close(lines)
		br := bufio.NewReader(r)
		for {
			data, err := br.ReadBytes('\n')
			if len(data) > 0 {
				select {
				case lines <- line{data: data}:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					select {
					case lines <- line{err: err}:
					case <-ctx.Done():
					}
				}
				return
			}
		}
	}()

	bw := bufio.NewWriter(w)
	s.logger.Info("tool server started", "tools", len(s.registry.tools), "protocol", s.info.ProtocolVersion)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("tool server stopping", "reason", ctx.Err())
			return nil
		case l, ok := <-lines:
			if !ok {
				s.logger.Info("input closed, tool server stopping")
				return nil
			}
			if l.err != nil {
				return fmt.Errorf("read request: %w", l.err)
			}
			resp := s.Handle(ctx, l.data)
			if resp == nil {
				continue
			}
			if err := writeResponse(bw, resp); err != nil {
				return err
			}
		}
	}
}

func writeResponse(bw *bufio.Writer, resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	data = append(data, '\n')
	if _, err := bw.Write(data); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush response: %w", err)
	}
	return nil
}

// Handle processes one raw message and returns the response to send, or nil
// when nothing must be sent.
func (s *Server) Handle(ctx context.Context, raw []byte) *Response {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	if raw[0] != '{' {
		s.logger.Debug("ignoring non-object input", "bytes", len(raw))
		return nil
	}
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		s.logger.Debug("ignoring malformed request", "error", err)
		return nil
	}

	method := ParseMethod(req.Method)
	logger := s.logger.With("method", req.Method)

	var result any
	switch method {
	case MethodInitialize:
		result = InitializeResult{
			ProtocolVersion: s.info.ProtocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      ServerInfo{Name: s.info.Name, Version: s.info.Version},
		}
		logger.Info("client initialized session")
	case MethodInitialized:
		logger.Debug("client ready")
		return nil
	case MethodToolsList:
		result = ListToolsResult{Tools: s.registry.Tools()}
	case MethodToolsCall:
		result = s.callTool(ctx, req.Params)
	case MethodPing:
		result = map[string]any{}
	case MethodUnknown:
		if req.IsNotification() {
			logger.Debug("ignoring unknown notification")
			return nil
		}
		logger.Warn("method not found")
		return &Response{
			JSONRPC: Version,
			ID:      req.ID,
			Error:   &Error{Code: CodeMethodNotFound, Message: "Method not found: " + req.Method},
		}
	}

	if req.IsNotification() {
		return nil
	}
	return &Response{JSONRPC: Version, ID: req.ID, Result: result}
}

func (s *Server) callTool(ctx context.Context, rawParams json.RawMessage) (res ToolResult) {
	var params callParams
	if len(rawParams) > 0 {
		if err := json.Unmarshal(rawParams, &params); err != nil {
			s.logger.Debug("tools/call with unreadable params", "error", err)
		}
	}
	if params.Arguments == nil {
		params.Arguments = map[string]any{}
	}

	tool, ok := s.registry.Lookup(params.Name)
	if !ok {
		s.logger.Warn("unknown tool", "tool", params.Name)
		s.metrics.ToolCall("unknown", true)
		return ErrorResult("Unknown tool: " + params.Name)
	}

	logger := log.WithTool(tool.Name)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("tool panicked", "panic", r)
			res = ErrorResult(fmt.Sprintf("%v", r))
		}
		s.metrics.ToolCall(tool.Name, res.IsError)
	}()

	logger.Debug("calling tool")
	text, err := tool.Handler(ctx, params.Arguments)
	if err != nil {
		logger.Warn("tool failed", "error", err)
		return ErrorResult(err.Error())
	}
	return TextResult(text)
}

// Package mcp exposes handover extraction as MCP tools for agent clients.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MikeSquared-Agency/contextbridge/internal/credential"
	"github.com/MikeSquared-Agency/contextbridge/internal/extractor"
	"github.com/MikeSquared-Agency/contextbridge/internal/store"
)

type Extractor interface {
	Extract(ctx context.Context, text string, cred credential.Credential) extractor.Outcome
}

// Server wraps the MCP SDK server around a single session.
type Server struct {
	MCPServer *sdkmcp.Server

	session   *store.Session
	extractor Extractor
	account   string
	logger    *slog.Logger
}

func NewServer(sess *store.Session, ext Extractor, account, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		session:   sess,
		extractor: ext,
		account:   account,
		logger:    logger,
	}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "contextbridge", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "extract_handover",
		Description: "Extract goals, commitments, risks and tech stack from a call transcript or email thread. The result replaces the current handover.",
	}, s.handleExtract)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_handover",
		Description: "Return the most recent successful handover extraction, if any.",
	}, s.handleGetHandover)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "credential_status",
		Description: "Report whether an API key is available and whether it comes from the managed secret store.",
	}, s.handleCredentialStatus)
}

type extractInput struct {
	Text    string `json:"text" jsonschema:"raw call transcript or email thread"`
	Account string `json:"account,omitempty" jsonschema:"account name to attach to the handover"`
	APIKey  string `json:"api_key,omitempty" jsonschema:"API key to use when no managed key is configured"`
}

type extractOutput struct {
	ModelUsed string                       `json:"model_used"`
	Record    map[string]any               `json:"record"`
	Failures  []extractor.CandidateFailure `json:"failures,omitempty"`
}

type getHandoverInput struct{}

type getHandoverOutput struct {
	Available   bool           `json:"available"`
	Account     string         `json:"account,omitempty"`
	ModelUsed   string         `json:"model_used,omitempty"`
	ExtractedAt string         `json:"extracted_at,omitempty"`
	Record      map[string]any `json:"record,omitempty"`
}

type credentialStatusInput struct{}

type credentialStatusOutput struct {
	Authenticated bool `json:"authenticated"`
	Managed       bool `json:"managed"`
}

func (s *Server) handleExtract(ctx context.Context, _ *sdkmcp.CallToolRequest, input extractInput) (*sdkmcp.CallToolResult, extractOutput, error) {
	s.session.Lock()
	defer s.session.Unlock()

	if strings.TrimSpace(input.APIKey) != "" {
		if _, err := s.session.Resolver.Supply(input.APIKey); err != nil {
			return nil, extractOutput{}, err
		}
	}
	cred, ok := s.session.Resolver.Resolve(ctx)
	if !ok {
		return nil, extractOutput{}, fmt.Errorf("no API key available: pass api_key or configure a managed key")
	}

	account := input.Account
	if account == "" {
		account = s.account
	}

	out := s.extractor.Extract(ctx, input.Text, cred)
	if out.Err != nil {
		return nil, extractOutput{}, fmt.Errorf("extract_handover: %w", out.Err)
	}
	s.session.Results.Apply(account, out)
	s.logger.Info("handover extracted via mcp", "model", out.ModelUsed, "account", account)

	return nil, extractOutput{
		ModelUsed: out.ModelUsed,
		Record:    recordMap(out.Record),
		Failures:  out.Failures,
	}, nil
}

func (s *Server) handleGetHandover(_ context.Context, _ *sdkmcp.CallToolRequest, _ getHandoverInput) (*sdkmcp.CallToolResult, getHandoverOutput, error) {
	s.session.Lock()
	defer s.session.Unlock()

	snap, ok := s.session.Results.Get()
	if !ok {
		return nil, getHandoverOutput{}, nil
	}
	return nil, getHandoverOutput{
		Available:   true,
		Account:     snap.Account,
		ModelUsed:   snap.ModelUsed,
		ExtractedAt: snap.ExtractedAt.Format(time.RFC3339),
		Record:      recordMap(snap.Record),
	}, nil
}

func (s *Server) handleCredentialStatus(ctx context.Context, _ *sdkmcp.CallToolRequest, _ credentialStatusInput) (*sdkmcp.CallToolResult, credentialStatusOutput, error) {
	s.session.Lock()
	defer s.session.Unlock()

	return nil, credentialStatusOutput{
		Authenticated: s.session.Resolver.Authenticated(ctx),
		Managed:       s.session.Resolver.Managed(ctx),
	}, nil
}

// recordMap flattens a Record into plain JSON values so the inferred output
// schema stays a generic object.
func recordMap(rec extractor.Record) map[string]any {
	m := make(map[string]any, len(extractor.Fields))
	for _, field := range extractor.Fields {
		v, _ := rec.Get(field)
		if v.List {
			items := make([]any, len(v.Items))
			for i, item := range v.Items {
				items[i] = item
			}
			m[field] = items
			continue
		}
		m[field] = v.Text
	}
	return m
}

// Package mcp exposes the curation engine as MCP tools.
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/phetools-curation-server/internal/domain"
	"github.com/phetools-curation-server/internal/service"
)

// Server represents the curation MCP server
type Server struct {
	config    domain.MCPConfig
	mcpServer *mcp.Server
	curation  *service.CurationService
	hierarchy domain.Hierarchy
	logger    *logrus.Logger
}

// NewServer creates a new MCP server instance with all curation tools
// registered.
func NewServer(cfg domain.MCPConfig, h domain.Hierarchy, curation *service.CurationService, logger *logrus.Logger) (*Server, error) {
	if cfg.ServerName == "" {
		cfg.ServerName = "phetools-curation-server"
	}
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "v1.0.0"
	}

	serverInfo := &mcp.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}

	server := &Server{
		config:    cfg,
		mcpServer: mcp.NewServer(serverInfo, nil),
		curation:  curation,
		hierarchy: h,
		logger:    logger,
	}

	if err := server.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	return server, nil
}

// Start serves MCP over stdin/stdout until ctx is cancelled or the client
// disconnects.
func (s *Server) Start(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}

// Run serves MCP over the given transport.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.WithFields(logrus.Fields{
		"server_name":    s.config.ServerName,
		"server_version": s.config.ServerVersion,
	}).Info("Starting curation MCP server")

	if err := s.mcpServer.Run(ctx, transport); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

func (s *Server) registerTools() error {
	addTool(s, &mcp.Tool{
		Name:        "parse_cell",
		Description: "Parse one term cell of a curation template (observed, excluded, na or an onset age such as P4Y or G32w2d)",
	}, s.handleParseCell)
	addTool(s, &mcp.Tool{
		Name:        "arrange_terms",
		Description: "Order HPO term ids for review: depth-first from Phenotypic abnormality with neoplasm terms last",
	}, s.handleArrangeTerms)
	addTool(s, &mcp.Tool{
		Name:        "validate_template",
		Description: "Validate a tab-separated curation template and return it with term columns in curation order",
	}, s.handleValidateTemplate)
	addTool(s, &mcp.Tool{
		Name:        "sanitize_cohort",
		Description: "Remove redundant and contradictory annotations from every row of a curation template",
	}, s.handleSanitizeCohort)
	addTool(s, &mcp.Tool{
		Name:        "merge_cohorts",
		Description: "Merge two curation templates of the same cohort type into one over the union of their term columns",
	}, s.handleMergeCohorts)
	addTool(s, &mcp.Tool{
		Name:        "qc_cohort",
		Description: "Run quality control on a curation template and report the annotations the sanitizer would change",
	}, s.handleQCCohort)

	s.logger.WithField("tool_count", 6).Info("Successfully registered all tools")
	return nil
}

// addTool registers h under the configured request timeout and logs every
// invocation.
func addTool[In, Out any](s *Server, tool *mcp.Tool, h mcp.ToolHandlerFor[In, Out]) {
	timeout := s.config.RequestTimeout
	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		start := time.Now()
		result, out, err := h(ctx, req, in)

		entry := s.logger.WithFields(logrus.Fields{
			"tool":     tool.Name,
			"duration": time.Since(start).String(),
		})
		if result != nil && result.IsError {
			entry.Warn("Tool call failed")
		} else {
			entry.Info("Tool invoked")
		}
		return result, out, err
	})
	s.logger.WithField("tool_name", tool.Name).Debug("Registered MCP tool")
}

package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/excerpts-mcp/internal/config"
	"github.com/dshills/excerpts-mcp/internal/importer"
	"github.com/dshills/excerpts-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "excerpts-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies.
// Every tool call opens its own store on the requested notebook; the store
// lives only for that call, so it is not registered anywhere.
type Server struct {
	mcp    *server.MCPServer
	cfg    config.Config
	logger *zap.Logger

	// serializes notebook access; imports additionally hold importLock so a
	// second import is rejected instead of queued
	mu         sync.Mutex
	importLock importer.ImportLock
}

// NewServer creates a new MCP server instance
func NewServer(cfg config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.EnsureNotebookDir(); err != nil {
		return nil, fmt.Errorf("failed to create notebook directory: %w", err)
	}

	s := &Server{
		mcp:    server.NewMCPServer(ServerName, ServerVersion),
		cfg:    cfg,
		logger: logger,
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("serving MCP on stdio", zap.String("notebook_dir", s.cfg.NotebookDir))
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(listNotebooksTool(), s.handleListNotebooks)
	s.mcp.AddTool(resetNotebookTool(), s.handleResetNotebook)

	s.mcp.AddTool(listTagsTool(), s.handleListTags)
	s.mcp.AddTool(searchTagsTool(), s.handleSearchTags)
	s.mcp.AddTool(saveTagTool(), s.handleSaveTag)
	s.mcp.AddTool(deleteTagTool(), s.handleDeleteTag)
	s.mcp.AddTool(reorderTagsTool(), s.handleReorderTags)

	s.mcp.AddTool(listExcerptsTool(), s.handleListExcerpts)
	s.mcp.AddTool(searchExcerptsTool(), s.handleSearchExcerpts)
	s.mcp.AddTool(getExcerptTool(), s.handleGetExcerpt)
	s.mcp.AddTool(saveExcerptTool(), s.handleSaveExcerpt)
	s.mcp.AddTool(deleteExcerptTool(), s.handleDeleteExcerpt)

	s.mcp.AddTool(importTextTool(), s.handleImportText)
	s.mcp.AddTool(importJSONTool(), s.handleImportJSON)
	s.mcp.AddTool(exportNotebookTool(), s.handleExportNotebook)
}

// withStore opens the notebook named in args, runs fn and commits its
// writes. Any error rolls the notebook back.
func (s *Server) withStore(ctx context.Context, args map[string]interface{}, fn func(*storage.Store) (interface{}, error)) (*mcp.CallToolResult, error) {
	path, err := s.cfg.NotebookPath(getStringDefault(args, "notebook", ""))
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid notebook", map[string]interface{}{
			"param":  "notebook",
			"reason": err.Error(),
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := storage.Open(ctx, path, storage.WithLogger(s.logger), storage.WithRegistry(nil))
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to open notebook", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer func() {
		if err := st.Close(); err != nil {
			s.logger.Warn("failed to close notebook", zap.String("path", path), zap.Error(err))
		}
	}()

	out, err := fn(st)
	if err != nil {
		if rbErr := st.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", zap.String("path", path), zap.Error(rbErr))
		}
		return nil, toMCPError(err)
	}
	if err := st.Commit(); err != nil {
		return nil, toMCPError(err)
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

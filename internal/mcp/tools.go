package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/excerpts-mcp/internal/config"
	"github.com/dshills/excerpts-mcp/internal/importer"
	"github.com/dshills/excerpts-mcp/internal/storage"
	"github.com/dshills/excerpts-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams    = -32602 // Invalid method parameters
	ErrorCodeInternalError    = -32603 // Internal JSON-RPC error
	ErrorCodeImportInProgress = -32002 // Another import is already running
	ErrorCodeEmptyQuery       = -32004 // Query parameter is empty
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

func (s *Server) handleListNotebooks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := storage.ListNotebooks(s.cfg.NotebookDir)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list notebooks", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"notebook_dir": s.cfg.NotebookDir,
		"default":      s.cfg.Notebook,
		"notebooks":    names,
	})), nil
}

func (s *Server) handleResetNotebook(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	if !getBoolDefault(args, "confirm", false) {
		return nil, newMCPError(ErrorCodeInvalidParams, "reset requires confirm=true", map[string]interface{}{
			"param": "confirm",
		})
	}
	return s.withStore(ctx, args, func(st *storage.Store) (interface{}, error) {
		if err := st.ResetAll(ctx); err != nil {
			return nil, err
		}
		return map[string]interface{}{"reset": true, "notebook": filepath.Base(st.Path())}, nil
	})
}

func (s *Server) handleListTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	return s.withStore(ctx, args, func(st *storage.Store) (interface{}, error) {
		tags, err := st.Tags().ListWithCounts(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"tags": tags}, nil
	})
}

func (s *Server) handleSearchTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	keyword, err := requireQuery(args)
	if err != nil {
		return nil, err
	}
	return s.withStore(ctx, args, func(st *storage.Store) (interface{}, error) {
		tags, err := st.Tags().Search(ctx, keyword)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"tags": tags}, nil
	})
}

func (s *Server) handleSaveTag(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	name, err := requireString(args, "name")
	if err != nil {
		return nil, err
	}
	id := getStringDefault(args, "id", "")
	if id == "" {
		id = types.NewTagID()
	}
	return s.withStore(ctx, args, func(st *storage.Store) (interface{}, error) {
		tag, err := st.Tags().CreateOrRename(ctx, id, name)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"tag": tag}, nil
	})
}

func (s *Server) handleDeleteTag(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	id, err := requireString(args, "id")
	if err != nil {
		return nil, err
	}
	return s.withStore(ctx, args, func(st *storage.Store) (interface{}, error) {
		if err := st.Tags().Delete(ctx, id); err != nil {
			return nil, err
		}
		return map[string]interface{}{"deleted": id}, nil
	})
}

func (s *Server) handleReorderTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	ids, ok := getStringSlice(args, "tag_ids")
	if !ok || len(ids) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "tag_ids parameter is required", map[string]interface{}{
			"param":  "tag_ids",
			"reason": "missing or empty",
		})
	}
	return s.withStore(ctx, args, func(st *storage.Store) (interface{}, error) {
		if err := st.Tags().Reorder(ctx, ids); err != nil {
			return nil, err
		}
		tags, err := st.Tags().ListOrdered(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"tags": tags}, nil
	})
}

func (s *Server) handleListExcerpts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	limit, err := limitArg(args)
	if err != nil {
		return nil, err
	}
	tagID := getStringDefault(args, "tag_id", "")
	author := getStringDefault(args, "author", "")
	source := getStringDefault(args, "source", "")

	return s.withStore(ctx, args, func(st *storage.Store) (interface{}, error) {
		var (
			excerpts []types.Excerpt
			err      error
		)
		switch {
		case tagID != "":
			var ids []string
			if ids, err = st.Tags().ExcerptIDsFor(ctx, tagID); err == nil {
				excerpts, err = st.Excerpts().GetMany(ctx, ids)
			}
		case author != "":
			excerpts, err = st.Excerpts().ByAuthor(ctx, author)
		case source != "":
			excerpts, err = st.Excerpts().BySource(ctx, source)
		default:
			excerpts, err = st.Excerpts().GetAll(ctx)
		}
		if err != nil {
			return nil, err
		}
		return page(excerpts, limit), nil
	})
}

func (s *Server) handleSearchExcerpts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	keyword, err := requireQuery(args)
	if err != nil {
		return nil, err
	}
	limit, err := limitArg(args)
	if err != nil {
		return nil, err
	}
	return s.withStore(ctx, args, func(st *storage.Store) (interface{}, error) {
		excerpts, err := st.Excerpts().Search(ctx, keyword)
		if err != nil {
			return nil, err
		}
		return page(excerpts, limit), nil
	})
}

func (s *Server) handleGetExcerpt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	id, err := requireString(args, "id")
	if err != nil {
		return nil, err
	}
	return s.withStore(ctx, args, func(st *storage.Store) (interface{}, error) {
		e, err := st.Excerpts().GetWithTags(ctx, id)
		if err != nil {
			return nil, err
		}
		if e == nil {
			return map[string]interface{}{"found": false, "id": id}, nil
		}
		return map[string]interface{}{"found": true, "excerpt": e}, nil
	})
}

// handleSaveExcerpt creates an excerpt when no id is given, patches it when
// the id is stored, and otherwise stores it under the given id. tag_ids is
// only applied to an existing excerpt when the key is present.
func (s *Server) handleSaveExcerpt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	tagIDs, tagsGiven := getStringSlice(args, "tag_ids")
	next := types.Excerpt{
		ID:      getStringDefault(args, "id", ""),
		Content: getStringDefault(args, "content", ""),
		Source:  getStringDefault(args, "source", ""),
		Title:   getStringDefault(args, "title", ""),
		Author:  getStringDefault(args, "author", ""),
		Note:    getStringDefault(args, "note", ""),
		TagIDs:  tagIDs,
	}

	return s.withStore(ctx, args, func(st *storage.Store) (interface{}, error) {
		repo := st.Excerpts()
		if next.ID == "" {
			id, err := repo.Create(ctx, next)
			if err != nil {
				return nil, err
			}
			return savedExcerpt(ctx, repo, id, true)
		}

		patch := types.ExcerptPatch{
			Content: next.Content,
			Source:  next.Source,
			Title:   next.Title,
			Author:  next.Author,
			Note:    next.Note,
		}
		if tagsGiven {
			patch.Tags = types.SetTags(tagIDs...)
		}
		found, err := repo.Update(ctx, next.ID, patch)
		if err != nil {
			return nil, err
		}
		if found {
			return savedExcerpt(ctx, repo, next.ID, false)
		}

		saved, err := repo.Save(ctx, next, nil)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"created": true, "excerpt": saved}, nil
	})
}

func savedExcerpt(ctx context.Context, repo *storage.ExcerptRepository, id string, created bool) (interface{}, error) {
	e, err := repo.GetWithTags(ctx, id)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"created": created, "excerpt": e}, nil
}

func (s *Server) handleDeleteExcerpt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	id, err := requireString(args, "id")
	if err != nil {
		return nil, err
	}
	return s.withStore(ctx, args, func(st *storage.Store) (interface{}, error) {
		deleted, err := st.Excerpts().Delete(ctx, id)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"deleted": deleted, "id": id}, nil
	})
}

func (s *Server) handleImportText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	paths, ok := getStringSlice(args, "paths")
	if !ok || len(paths) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "paths parameter is required", map[string]interface{}{
			"param":  "paths",
			"reason": "missing or empty",
		})
	}
	for _, p := range paths {
		if err := validateInputFile(p); err != nil {
			return nil, invalidPath("paths", p, err)
		}
	}
	return s.withImport(ctx, args, func(imp *importer.Importer) (*importer.Statistics, error) {
		return imp.ImportTextFiles(ctx, paths, &importer.Config{Workers: s.cfg.Import.Workers})
	})
}

func (s *Server) handleImportJSON(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	path, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}
	if err := validateInputFile(path); err != nil {
		return nil, invalidPath("path", path, err)
	}
	return s.withImport(ctx, args, func(imp *importer.Importer) (*importer.Statistics, error) {
		return imp.ImportJSONFile(ctx, path)
	})
}

// withImport runs an import on the requested notebook. A second import while
// one is running fails immediately.
func (s *Server) withImport(ctx context.Context, args map[string]interface{}, run func(*importer.Importer) (*importer.Statistics, error)) (*mcp.CallToolResult, error) {
	if !s.importLock.TryAcquire() {
		return nil, toMCPError(importer.ErrImportInProgress)
	}
	defer s.importLock.Release()

	return s.withStore(ctx, args, func(st *storage.Store) (interface{}, error) {
		stats, err := run(importer.New(st, s.logger))
		if err != nil {
			return nil, err
		}
		return importResponse(stats), nil
	})
}

func importResponse(stats *importer.Statistics) map[string]interface{} {
	response := map[string]interface{}{
		"files_parsed":      stats.FilesParsed,
		"files_failed":      stats.FilesFailed,
		"blocks_skipped":    stats.BlocksSkipped,
		"excerpts_imported": stats.ExcerptsImported,
		"tags_imported":     stats.TagsImported,
		"duration_ms":       stats.Duration.Milliseconds(),
	}
	if errorCount := len(stats.ErrorMessages); errorCount > 5 {
		response["errors"] = stats.ErrorMessages[:5]
		response["error_count"] = errorCount
	} else if errorCount > 0 {
		response["errors"] = stats.ErrorMessages
	}
	return response
}

func (s *Server) handleExportNotebook(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	path, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}
	if err := validateOutputFile(path); err != nil {
		return nil, invalidPath("path", path, err)
	}
	return s.withStore(ctx, args, func(st *storage.Store) (interface{}, error) {
		snap, err := importer.New(st, s.logger).Export(ctx, path)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"path":        path,
			"tags":        len(snap.Tags),
			"excerpts":    len(snap.Excerpts),
			"export_date": snap.ExportDate,
		}, nil
	})
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// toMCPError maps domain errors onto protocol codes. User-input violations
// become invalid params; everything else is internal.
func toMCPError(err error) error {
	var mcpErr *MCPError
	switch {
	case errors.As(err, &mcpErr):
		return mcpErr
	case errors.Is(err, importer.ErrImportInProgress):
		return newMCPError(ErrorCodeImportInProgress, err.Error(), nil)
	case errors.Is(err, types.ErrInvalidInput),
		errors.Is(err, types.ErrInvalidOperation),
		errors.Is(err, types.ErrDuplicateTagName),
		errors.Is(err, config.ErrInvalidNotebookName):
		return newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	default:
		return newMCPError(ErrorCodeInternalError, "operation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

func requireString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || val == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return val, nil
}

func requireQuery(args map[string]interface{}) (string, error) {
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return "", newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}
	return query, nil
}

func limitArg(args map[string]interface{}) (int, error) {
	limit := getIntDefault(args, "limit", defaultLimit)
	if limit < 1 || limit > maxLimit {
		return 0, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", maxLimit), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}
	return limit, nil
}

func page(excerpts []types.Excerpt, limit int) map[string]interface{} {
	total := len(excerpts)
	if total > limit {
		excerpts = excerpts[:limit]
	}
	return map[string]interface{}{
		"total":    total,
		"returned": len(excerpts),
		"excerpts": excerpts,
	}
}

func invalidPath(param, path string, err error) error {
	return newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
		"param":  param,
		"path":   path,
		"reason": err.Error(),
	})
}

// validateInputFile checks that path is an absolute, readable regular file
func validateInputFile(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if info.IsDir() {
		return ErrPathIsDirectory
	}
	return nil
}

// validateOutputFile checks that path is absolute and its directory exists
func validateOutputFile(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return ErrPathIsDirectory
	}
	info, err := os.Stat(filepath.Dir(path))
	if err != nil || !info.IsDir() {
		return ErrParentNotFound
	}
	return nil
}

// formatJSON formats a response as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter. The second result
// reports whether the key was present at all.
func getStringSlice(args map[string]interface{}, key string) ([]string, bool) {
	raw, present := args[key]
	if !present || raw == nil {
		return nil, present
	}
	switch vals := raw.(type) {
	case []string:
		return vals, true
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, v := range vals {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	}
	return nil, true
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrPathIsDirectory = errors.New("path is a directory")
	ErrParentNotFound  = errors.New("parent directory does not exist")
)

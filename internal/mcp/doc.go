// Package mcp implements the Model Context Protocol (MCP) server for the
// excerpt notebooks.
//
// The server exposes tools to AI assistants over stdio:
//   - list_notebooks, reset_notebook: notebook files in the notebook directory
//   - list_tags, search_tags, save_tag, delete_tag, reorder_tags
//   - list_excerpts, search_excerpts, get_excerpt, save_excerpt, delete_excerpt
//   - import_text, import_json, export_notebook
//
// Every tool except list_notebooks accepts an optional "notebook" argument
// naming a file in the notebook directory; the configured default is used
// otherwise.
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is typically started via the serve command:
//
//	excerpts serve
//
// Logs go to stderr; stdout carries only protocol messages.
//
// # Tool: save_excerpt
//
//	Request:
//	{
//	  "name": "save_excerpt",
//	  "arguments": {
//	    "content": "知者不惑，仁者不忧，勇者不惧。",
//	    "source": "论语",
//	    "author": "孔子",
//	    "tag_ids": ["f3b1c2d4-..."]
//	  }
//	}
//
//	Response:
//	{
//	  "created": true,
//	  "excerpt": {
//	    "cid": "9a0e...",
//	    "content": "知者不惑，仁者不忧，勇者不惧。",
//	    "source": "论语",
//	    "title": "无",
//	    "author": "孔子",
//	    "note": "",
//	    "created_at": "2024-05-01T08:30:00.000000Z",
//	    "tag_cids": ["f3b1c2d4-...", "default"]
//	  }
//	}
//
// With an id that is already stored, only the fields given are changed and
// tag_ids, when present, replaces the tag set. The tag "default" is always
// kept.
//
// # Error Handling
//
// Tool errors are returned as MCPError values:
//   - -32602: invalid parameters, including empty content, empty or
//     duplicate tag names and deleting the default tag
//   - -32004: empty search query
//   - -32002: another import is already running
//   - -32603: storage failures
package mcp

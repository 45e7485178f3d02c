package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func notebookProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Notebook name inside the notebook directory (\".db\" is optional). Defaults to the configured notebook.",
	}
}

func stringProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func stringArrayProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "string"},
		"description": description,
	}
}

func limitProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": "Maximum number of excerpts to return (1-1000)",
		"default":     defaultLimit,
		"minimum":     1,
		"maximum":     maxLimit,
	}
}

func tool(name, description string, properties map[string]interface{}, required ...string) mcp.Tool {
	properties["notebook"] = notebookProperty()
	return mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: properties,
			Required:   required,
		},
	}
}

func listNotebooksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_notebooks",
		Description: "List the notebook files in the notebook directory",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

func resetNotebookTool() mcp.Tool {
	return tool("reset_notebook", "Drop every excerpt and tag in a notebook and recreate the empty schema",
		map[string]interface{}{
			"confirm": map[string]interface{}{
				"type":        "boolean",
				"description": "Must be true; the reset cannot be undone",
				"default":     false,
			},
		}, "confirm")
}

func listTagsTool() mcp.Tool {
	return tool("list_tags", "List tags in display order with the number of excerpts carrying each",
		map[string]interface{}{})
}

func searchTagsTool() mcp.Tool {
	return tool("search_tags", "Find tags whose name contains every whitespace-separated term",
		map[string]interface{}{
			"query": stringProperty("Search terms"),
		}, "query")
}

func saveTagTool() mcp.Tool {
	return tool("save_tag", "Create a tag, or rename it when id is given. Tag names are unique.",
		map[string]interface{}{
			"id":   stringProperty("Tag id to rename; omit to create a new tag"),
			"name": stringProperty("Tag name"),
		}, "name")
}

func deleteTagTool() mcp.Tool {
	return tool("delete_tag", "Delete a tag. Its excerpts move to the default tag, which cannot be deleted.",
		map[string]interface{}{
			"id": stringProperty("Tag id"),
		}, "id")
}

func reorderTagsTool() mcp.Tool {
	return tool("reorder_tags", "Set the display order of tags; the first id is shown first",
		map[string]interface{}{
			"tag_ids": stringArrayProperty("Tag ids in the desired order"),
		}, "tag_ids")
}

func listExcerptsTool() mcp.Tool {
	return tool("list_excerpts", "List excerpts, newest first, optionally filtered by tag, author or source",
		map[string]interface{}{
			"tag_id": stringProperty("Only excerpts carrying this tag"),
			"author": stringProperty("Only excerpts by this exact author"),
			"source": stringProperty("Only excerpts from this exact source"),
			"limit":  limitProperty(),
		})
}

func searchExcerptsTool() mcp.Tool {
	return tool("search_excerpts", "Find excerpts where every term appears in the content, title, author, note or source",
		map[string]interface{}{
			"query": stringProperty("Search terms"),
			"limit": limitProperty(),
		}, "query")
}

func getExcerptTool() mcp.Tool {
	return tool("get_excerpt", "Fetch one excerpt with its tag ids",
		map[string]interface{}{
			"id": stringProperty("Excerpt id"),
		}, "id")
}

func saveExcerptTool() mcp.Tool {
	return tool("save_excerpt", "Create an excerpt, or update the fields given when id is stored. Omitting tag_ids keeps the current tags.",
		map[string]interface{}{
			"id":      stringProperty("Excerpt id; omit to create"),
			"content": stringProperty("Excerpt text (required for new excerpts)"),
			"source":  stringProperty("Book or work the excerpt comes from"),
			"title":   stringProperty("Chapter or piece title"),
			"author":  stringProperty("Author"),
			"note":    stringProperty("Personal note"),
			"tag_ids": stringArrayProperty("Tag ids; the default tag is always kept"),
		})
}

func deleteExcerptTool() mcp.Tool {
	return tool("delete_excerpt", "Delete an excerpt and its tag associations",
		map[string]interface{}{
			"id": stringProperty("Excerpt id"),
		}, "id")
}

func importTextTool() mcp.Tool {
	return tool("import_text", "Import excerpts from plain-text files. Blocks are separated by blank lines.",
		map[string]interface{}{
			"paths": stringArrayProperty("Absolute paths of the text files"),
		}, "paths")
}

func importJSONTool() mcp.Tool {
	return tool("import_json", "Import tags and excerpts from a JSON export, replacing records with the same id",
		map[string]interface{}{
			"path": stringProperty("Absolute path of the JSON file"),
		}, "path")
}

func exportNotebookTool() mcp.Tool {
	return tool("export_notebook", "Write every tag and excerpt of a notebook to a JSON file",
		map[string]interface{}{
			"path": stringProperty("Absolute path of the output file"),
		}, "path")
}

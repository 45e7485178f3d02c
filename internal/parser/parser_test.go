package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `#诗歌#唐代
#思乡
@唐诗三百首
《静夜思》
作者：李白
床前明月光
疑是地上霜
相关：望月


是的，我很重要。
Author: 毕淑敏
#散文
note: 议论

@nothing but a source
#orphan
`

func TestParse(t *testing.T) {
	p := New()
	result, err := p.Parse(strings.NewReader(sample), "sample.txt")
	require.NoError(t, err)

	require.Len(t, result.Entries, 2)

	first := result.Entries[0]
	assert.Equal(t, "床前明月光\n疑是地上霜", first.Content)
	assert.Equal(t, "唐诗三百首", first.Source)
	assert.Equal(t, "静夜思", first.Title)
	assert.Equal(t, "李白", first.Author)
	assert.Equal(t, "望月", first.Note)
	assert.Equal(t, []string{"诗歌", "唐代", "思乡"}, first.TagNames)

	second := result.Entries[1]
	assert.Equal(t, "是的，我很重要。", second.Content)
	assert.Equal(t, "毕淑敏", second.Author)
	assert.Equal(t, "议论", second.Note)
	assert.Equal(t, []string{"散文"}, second.TagNames)
	assert.Empty(t, second.Source)
	assert.Empty(t, second.Title)

	assert.Equal(t, []string{"唐代", "思乡", "散文", "诗歌"}, result.Tags)

	require.True(t, result.HasErrors())
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "sample.txt", result.Errors[0].File)
	assert.Equal(t, 16, result.Errors[0].Line)
}

func TestParse_EdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		entries int
		content string
	}{
		{"empty", "", 0, ""},
		{"whitespace only", "  \n\t\n", 0, ""},
		{"crlf", "line one\r\nline two\r\n\r\nnext\r\n", 2, "line one\nline two"},
		{"blank line with spaces separates", "a\n   \nb", 2, "a"},
		{"bom", "\ufeffhello", 1, "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := New().Parse(strings.NewReader(tt.input), "x")
			require.NoError(t, err)
			require.Len(t, result.Entries, tt.entries)
			if tt.entries > 0 {
				assert.Equal(t, tt.content, result.Entries[0].Content)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotes.txt")
	require.NoError(t, os.WriteFile(path, []byte("content\n#tag"), 0o600))

	result, err := New().ParseFile(path)
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, []string{"tag"}, result.Tags)

	_, err = New().ParseFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

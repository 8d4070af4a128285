package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campusqa/campusqa-cli/internal/domain"
	"github.com/campusqa/campusqa-cli/internal/ports"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input    string
		wantName string
		wantArg  string
	}{
		{input: "/new", wantName: "new", wantArg: ""},
		{input: "/new 考试安排", wantName: "new", wantArg: "考试安排"},
		{input: "/switch 2", wantName: "switch", wantArg: "2"},
		{input: "/SWITCH abc-123", wantName: "switch", wantArg: "abc-123"},
		{input: "  /rename  新标题  ", wantName: "rename", wantArg: "新标题"},
	}

	for _, tc := range testCases {
		name, arg := parseCommand(tc.input)
		assert.Equal(t, tc.wantName, name, tc.input)
		assert.Equal(t, tc.wantArg, arg, tc.input)
	}
}

func TestResolveSessionArg(t *testing.T) {
	t.Parallel()

	m := Model{summaries: []domain.SessionSummary{
		{ID: "sess-a"},
		{ID: "sess-b"},
	}}

	id, ok := m.resolveSessionArg("2")
	assert.True(t, ok)
	assert.Equal(t, domain.SessionID("sess-b"), id)

	id, ok = m.resolveSessionArg("sess-raw")
	assert.True(t, ok)
	assert.Equal(t, domain.SessionID("sess-raw"), id)

	_, ok = m.resolveSessionArg("9")
	assert.False(t, ok)

	_, ok = m.resolveSessionArg("")
	assert.False(t, ok)
}

func TestReplaceTranscriptEmptyHistoryShowsPlaceholder(t *testing.T) {
	t.Parallel()

	m := Model{unitIndex: map[ports.RenderUnit]int{}}
	m = m.replaceTranscript(domain.SessionHistory{ID: "sess-a"})

	assert.Len(t, m.entries, 1)
	assert.True(t, m.entries[0].system)
	assert.Equal(t, emptyHistoryNotice, m.entries[0].content)
}

func TestReplaceTranscriptKeepsMessageOrder(t *testing.T) {
	t.Parallel()

	m := Model{unitIndex: map[ports.RenderUnit]int{}}
	m = m.replaceTranscript(domain.SessionHistory{
		ID: "sess-a",
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "图书馆几点开门？"},
			{Role: domain.RoleAssistant, Content: "早上8:00开门。"},
		},
	})

	assert.Len(t, m.entries, 2)
	assert.Equal(t, domain.RoleUser, m.entries[0].role)
	assert.Equal(t, "早上8:00开门。", m.entries[1].content)
}

func TestFormatSessionListMarksActive(t *testing.T) {
	t.Parallel()

	out := formatSessionList([]domain.SessionSummary{
		{ID: "sess-a", Title: "宿舍问题", MessageCount: 4},
		{ID: "sess-b", Title: "", MessageCount: 0},
	}, "sess-b")

	assert.Contains(t, out, "1. 宿舍问题")
	assert.Contains(t, out, "* 2. （未命名）")
}

func TestFormatSessionListEmpty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "还没有会话", formatSessionList(nil, ""))
}

func TestShortSessionID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "12345678", shortSessionID("123456789abc"))
	assert.Equal(t, "abc", shortSessionID("abc"))
	assert.Equal(t, "-", shortSessionID(""))
}

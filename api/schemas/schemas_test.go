package schemas_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/wayfinder/api/schemas"
)

// TestConstants pins values that end up in prompts, files and indexes.
func TestConstants(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		constant interface{}
		expected string
	}{
		{schemas.StatusSuccess, "SUCCESS"},
		{schemas.StatusFailure, "FAILURE"},
		{schemas.StatusImpossible, "IMPOSSIBLE"},
		{schemas.SectionNavigationGraph, "navigation_graph"},
		{schemas.SectionVerdict, "verdict"},
		{schemas.SectionFailureGuide, "failure_guide"},
		{schemas.SectionGuides, "guides"},
		{schemas.RoleUser, "user"},
		{schemas.RoleAssistant, "assistant"},
		{schemas.TierFast, "fast"},
		{schemas.TierPowerful, "powerful"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, fmt.Sprint(tc.constant))
	}
}

func TestParseVerdictStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in     string
		want   schemas.VerdictStatus
		wantOK bool
	}{
		{"SUCCESS", schemas.StatusSuccess, true},
		{" 'failure' ", schemas.StatusFailure, true},
		{`"Impossible"`, schemas.StatusImpossible, true},
		{"PARTIAL", "PARTIAL", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := schemas.ParseVerdictStatus(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNavigationGraph_PageNames(t *testing.T) {
	t.Parallel()
	g := schemas.NavigationGraph{"Search": {}, "Cart": {}, "Home": {}}
	assert.Equal(t, []string{"Cart", "Home", "Search"}, g.PageNames())
	assert.Empty(t, schemas.NavigationGraph(nil).PageNames())
}

func TestNavigationGraph_JSONShape(t *testing.T) {
	t.Parallel()
	g := schemas.NavigationGraph{"Home": {
		URL:           "https://ex.com/",
		Layout:        "header",
		Elements:      []string{"Search"},
		OutgoingLinks: []schemas.OutgoingLink{{Target: "Results", Action: "search"}},
	}}
	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Home":{"url":"https://ex.com/","layout":"header","elements":["Search"],
		"outgoing_links":[{"target":"Results","action":"search"}]}}`, string(data))
}

func TestParsedResponse_FailureGuide(t *testing.T) {
	t.Parallel()
	var p schemas.ParsedResponse
	assert.False(t, p.HasFailureGuide())
	assert.Equal(t, "", p.FailureGuideText())

	empty := ""
	p.FailureGuide = &empty
	assert.False(t, p.HasFailureGuide())

	text := "Use the search box."
	p.FailureGuide = &text
	assert.True(t, p.HasFailureGuide())
	assert.Equal(t, text, p.FailureGuideText())
}

func TestPlanRecord_RoundTripKeepsDate(t *testing.T) {
	t.Parallel()
	rec := schemas.PlanRecord{ID: "1", TaskTitle: "T", Plan: "P", TaskID: "task", ExecutionDate: getTestTime(t)}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "embedding")

	var back schemas.PlanRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, rec.ExecutionDate.Equal(back.ExecutionDate))
}

func TestStorageError(t *testing.T) {
	t.Parallel()
	assert.NoError(t, schemas.NewStorageError("read", "/x", nil))

	err := schemas.NewStorageError("read", "/tmp/g.json", fs.ErrPermission)
	assert.True(t, errors.Is(err, schemas.ErrStorage))
	assert.True(t, errors.Is(err, fs.ErrPermission))
	assert.Equal(t, "storage read /tmp/g.json: permission denied", err.Error())

	var se *schemas.StorageError
	require.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &se))
	assert.Equal(t, "read", se.Op)

	assert.Equal(t, "storage list: boom", schemas.NewStorageError("list", "", errors.New("boom")).Error())
}

func TestEmbeddingError(t *testing.T) {
	t.Parallel()
	assert.NoError(t, schemas.NewEmbeddingError("x", nil))

	err := schemas.NewEmbeddingError(strings.Repeat("a", 100), errors.New("timeout"))
	assert.True(t, errors.Is(err, schemas.ErrEmbedding))
	assert.False(t, errors.Is(err, schemas.ErrStorage))
	assert.Contains(t, err.Error(), strings.Repeat("a", 80)+"...")

	err = schemas.NewEmbeddingError(strings.Repeat("é", 60), errors.New("timeout"))
	assert.True(t, utf8.ValidString(err.Error()))
	assert.Contains(t, err.Error(), strings.Repeat("é", 40)+"...")
}

func TestParseIssue_Error(t *testing.T) {
	t.Parallel()
	i := schemas.ParseIssue{Section: schemas.SectionVerdict, Reason: "no verdict tags"}
	assert.Equal(t, "verdict: no verdict tags", i.Error())
	assert.ErrorIs(t, fmt.Errorf("evaluate: %w", i), schemas.ErrParse)
	assert.NotErrorIs(t, i, schemas.ErrStorage)
}

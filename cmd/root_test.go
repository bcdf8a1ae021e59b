// File: cmd/root_test.go
package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/wayfinder/internal/service"
)

func TestRootCmd_Version(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "wayfinder version "+Version+"\n", out)

	out, err = h.run(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestRootCmd_NoArgsPrintsHelp(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Wayfinder judges recorded browser-agent runs")
}

func TestRootCmd_ConfigFileAndEnv(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "top_k: 7")
	assert.Contains(t, out, "index: memory")
	assert.NotContains(t, out, "api_key")

	t.Setenv("WAYFINDER_PLANS_TOP_K", "9")
	out, err = h.run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "top_k: 9", "environment overrides the config file")
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	h := newHarness(t)
	t.Setenv("WAYFINDER_PLANS_INDEX", "cassandra")

	_, err := h.run(t, "graphs", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plans.index")
	assert.Empty(t, h.factory.needs, "no components are built for an invalid config")
}

func TestRootCmd_MissingConfigFile(t *testing.T) {
	h := newHarness(t)
	h.cfgPath = h.dir + "/nope.yaml"

	_, err := h.run(t, "graphs", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize configuration")
}

func TestRootCmd_FactoryError(t *testing.T) {
	h := newHarness(t)
	h.factory.err = errors.New("no database")

	_, err := h.run(t, "plans", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database")
}

func TestGetConfigFromContext_Missing(t *testing.T) {
	_, err := getConfigFromContext(context.Background())
	assert.Error(t, err)
}

func TestCommands_RequestOnlyWhatTheyNeed(t *testing.T) {
	h := newHarness(t)
	hist := h.writeHistory(t)

	tests := []struct {
		args []string
		want service.Needs
	}{
		{[]string{"graphs", "stats"}, service.Needs{}},
		{[]string{"history", "screenshots", hist}, service.Needs{}},
		{[]string{"plans", "list"}, service.Needs{Plans: true}},
		{[]string{"guide", "--task", "Find a red mug"}, service.Everything},
	}
	for _, tt := range tests {
		h.factory.needs = nil
		_, err := h.run(t, tt.args...)
		require.NoError(t, err, tt.args)
		require.Len(t, h.factory.needs, 1, tt.args)
		assert.Equal(t, tt.want, h.factory.needs[0], tt.args)
	}
}

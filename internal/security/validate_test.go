package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAgentData(t *testing.T) {
	tests := []struct {
		name  string
		data  AgentData
		valid bool
	}{
		{
			name: "valid agent",
			data: AgentData{
				ID: "agent-1", Name: "Builder", ModelFamily: "claude",
				TaskTypes: []string{"code_generation"}, Languages: []string{"go"},
			},
			valid: true,
		},
		{
			name:  "empty id",
			data:  AgentData{Name: "x", ModelFamily: "claude"},
			valid: false,
		},
		{
			name:  "unknown model family",
			data:  AgentData{ID: "a", Name: "x", ModelFamily: "skynet"},
			valid: false,
		},
		{
			name: "unknown task type",
			data: AgentData{
				ID: "a", Name: "x", ModelFamily: "gpt",
				TaskTypes: []string{"world_domination"},
			},
			valid: false,
		},
		{
			name: "id too long",
			data: AgentData{
				ID: strings.Repeat("a", MaxIDLength+1), Name: "x", ModelFamily: "gpt",
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateAgentData(&tt.data)
			assert.Equal(t, tt.valid, result.Valid, "errors: %v", result.Errors)
		})
	}
}

func TestValidateAgentDataSanitizesID(t *testing.T) {
	result := ValidateAgentData(&AgentData{
		ID: "agent 1!@#", Name: "x", ModelFamily: "gpt",
	})
	require.True(t, result.Valid, "errors: %v", result.Errors)
	assert.Equal(t, "agent1", result.Sanitized["id"])
}

func TestValidateAgentDataListCap(t *testing.T) {
	tasks := make([]string, MaxListEntries+1)
	for i := range tasks {
		tasks[i] = "testing"
	}
	result := ValidateAgentData(&AgentData{
		ID: "a", Name: "x", ModelFamily: "gpt", TaskTypes: tasks,
	})
	assert.False(t, result.Valid)
}

func TestValidatePerformanceMetrics(t *testing.T) {
	tests := []struct {
		name    string
		metrics PerformanceMetrics
		valid   bool
	}{
		{name: "valid", metrics: PerformanceMetrics{QualityScore: 0.8, LatencyMs: 1200, TokensUsed: 3000}, valid: true},
		{name: "score over one", metrics: PerformanceMetrics{QualityScore: 1.2}, valid: false},
		{name: "negative latency", metrics: PerformanceMetrics{LatencyMs: -1}, valid: false},
		{name: "latency over cap", metrics: PerformanceMetrics{LatencyMs: MaxLatencyMs + 1}, valid: false},
		{name: "tokens over cap", metrics: PerformanceMetrics{TokensUsed: MaxTokensUsed + 1}, valid: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidatePerformanceMetrics(&tt.metrics).Valid)
		})
	}
}

func TestValidateQuery(t *testing.T) {
	assert.True(t, ValidateQuery(&AgentQuery{TaskType: "testing", Language: "go", MaxUtilization: 80, MinSuccessRate: 0.5}).Valid)
	assert.False(t, ValidateQuery(&AgentQuery{MaxUtilization: 120}).Valid)
	assert.False(t, ValidateQuery(&AgentQuery{MinSuccessRate: 1.5}).Valid)
	assert.False(t, ValidateQuery(&AgentQuery{Language: "cobol-2099"}).Valid)
}

func newTestCommandValidator() *CommandValidator {
	return NewCommandValidator(CommandValidatorConfig{
		AllowedCommands:  []string{"status", "pause", "flush-cache"},
		MaxCommandLength: 100,
		MaxArgLength:     20,
	})
}

func TestCommandValidatorAllowlist(t *testing.T) {
	v := newTestCommandValidator()

	assert.True(t, v.Validate("status").Valid)
	assert.True(t, v.Validate("pause queue1").Valid)
	assert.False(t, v.Validate("rm -rf /").Valid)
	assert.False(t, v.Validate("").Valid)
}

func TestCommandValidatorRejectsInjection(t *testing.T) {
	v := newTestCommandValidator()

	injections := []string{
		"status; rm x",
		"status arg|pipe",
		"status arg&bg",
		"status out>file",
		"status in<file",
		"status {brace",
		"status [bracket",
		"status glob*",
		"status what?",
		"status ~home",
		"status $(whoami)",
		"status `whoami`",
		"status $HOME",
		"status ${HOME}",
	}
	for _, cmd := range injections {
		assert.False(t, v.Validate(cmd).Valid, "must reject %q", cmd)
	}
}

func TestCommandValidatorLengthLimits(t *testing.T) {
	v := newTestCommandValidator()

	assert.False(t, v.Validate("status "+strings.Repeat("a", 200)).Valid)
	assert.False(t, v.Validate("status "+strings.Repeat("a", 30)).Valid, "argument over per-arg cap")
}

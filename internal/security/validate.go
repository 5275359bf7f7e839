package security

import (
	"fmt"
	"regexp"
	"strings"
)

// Validation limits.
const (
	MaxIDLength      = 255
	MaxNameLength    = 255
	MaxQueryLength   = 1024
	MaxListEntries   = 20
	MaxTagEntries    = 50
	MaxLatencyMs     = 300000
	MaxTokensUsed    = 1000000
	MaxUtilizationPc = 100
)

// ValidationResult carries the outcome of an input validation.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Errors    []string          `json:"errors,omitempty"`
	Sanitized map[string]string `json:"sanitized,omitempty"`
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// AgentData is the registration payload validated before any agent
// mutation.
type AgentData struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	ModelFamily     string   `json:"model_family"`
	TaskTypes       []string `json:"task_types,omitempty"`
	Languages       []string `json:"languages,omitempty"`
	Specializations []string `json:"specializations,omitempty"`
}

// PerformanceMetrics is the per-task metrics payload.
type PerformanceMetrics struct {
	QualityScore float64 `json:"quality_score"`
	LatencyMs    float64 `json:"latency_ms"`
	TokensUsed   int64   `json:"tokens_used"`
	Success      bool    `json:"success"`
}

// AgentQuery is the filtered lookup payload.
type AgentQuery struct {
	TaskType       string  `json:"task_type,omitempty"`
	Language       string  `json:"language,omitempty"`
	MaxUtilization float64 `json:"max_utilization,omitempty"`
	MinSuccessRate float64 `json:"min_success_rate,omitempty"`
}

var modelFamilies = map[string]bool{
	"gpt": true, "claude": true, "gemini": true, "llama": true,
	"mistral": true, "qwen": true, "deepseek": true, "other": true,
}

var taskTypes = map[string]bool{
	"code_generation": true, "code_review": true, "testing": true,
	"documentation": true, "research": true, "verification": true,
	"planning": true, "refactoring": true, "analysis": true,
}

var languages = map[string]bool{
	"go": true, "python": true, "typescript": true, "javascript": true,
	"rust": true, "java": true, "c": true, "cpp": true, "csharp": true,
	"ruby": true, "swift": true, "kotlin": true, "sql": true, "shell": true,
}

var specializations = map[string]bool{
	"frontend": true, "backend": true, "infra": true, "security": true,
	"data": true, "ml": true, "mobile": true, "embedded": true,
	"distributed_systems": true, "performance": true,
}

var idSanitizer = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeID strips every character outside [A-Za-z0-9_-].
func SanitizeID(id string) string {
	return idSanitizer.ReplaceAllString(id, "")
}

// ValidateAgentData validates a registration payload, returning the
// sanitized identifier when valid.
func ValidateAgentData(data *AgentData) *ValidationResult {
	result := &ValidationResult{Valid: true}
	if data == nil {
		result.fail("agent data is required")
		return result
	}

	id := strings.TrimSpace(data.ID)
	switch {
	case id == "":
		result.fail("id must not be empty")
	case len(id) > MaxIDLength:
		result.fail("id exceeds %d characters", MaxIDLength)
	default:
		sanitized := SanitizeID(id)
		if sanitized == "" {
			result.fail("id contains no valid characters")
		} else {
			if result.Sanitized == nil {
				result.Sanitized = make(map[string]string)
			}
			result.Sanitized["id"] = sanitized
		}
	}

	name := strings.TrimSpace(data.Name)
	switch {
	case name == "":
		result.fail("name must not be empty")
	case len(name) > MaxNameLength:
		result.fail("name exceeds %d characters", MaxNameLength)
	}

	if !modelFamilies[strings.ToLower(data.ModelFamily)] {
		result.fail("model family %q is not recognized", data.ModelFamily)
	}

	validateEnumList(result, "task_types", data.TaskTypes, taskTypes, MaxListEntries)
	validateEnumList(result, "languages", data.Languages, languages, MaxListEntries)
	validateEnumList(result, "specializations", data.Specializations, specializations, MaxTagEntries)

	return result
}

func validateEnumList(result *ValidationResult, field string, values []string, allowed map[string]bool, limit int) {
	if len(values) > limit {
		result.fail("%s exceeds %d entries", field, limit)
		return
	}
	for _, v := range values {
		if !allowed[strings.ToLower(strings.TrimSpace(v))] {
			result.fail("%s entry %q is not recognized", field, v)
		}
	}
}

// ValidatePerformanceMetrics validates a metrics payload.
func ValidatePerformanceMetrics(m *PerformanceMetrics) *ValidationResult {
	result := &ValidationResult{Valid: true}
	if m == nil {
		result.fail("metrics are required")
		return result
	}

	if m.QualityScore < 0 || m.QualityScore > 1 {
		result.fail("quality score must be in [0,1], got %v", m.QualityScore)
	}
	if m.LatencyMs < 0 || m.LatencyMs > MaxLatencyMs {
		result.fail("latency must be in [0,%d] ms, got %v", MaxLatencyMs, m.LatencyMs)
	}
	if m.TokensUsed < 0 || m.TokensUsed > MaxTokensUsed {
		result.fail("tokens used must be in [0,%d], got %d", MaxTokensUsed, m.TokensUsed)
	}
	return result
}

// ValidateQuery validates a lookup payload.
func ValidateQuery(q *AgentQuery) *ValidationResult {
	result := &ValidationResult{Valid: true}
	if q == nil {
		result.fail("query is required")
		return result
	}

	if q.TaskType != "" && !taskTypes[strings.ToLower(q.TaskType)] {
		result.fail("task type %q is not recognized", q.TaskType)
	}
	if q.Language != "" && !languages[strings.ToLower(q.Language)] {
		result.fail("language %q is not recognized", q.Language)
	}
	if q.MaxUtilization < 0 || q.MaxUtilization > MaxUtilizationPc {
		result.fail("max utilization must be in [0,%d], got %v", MaxUtilizationPc, q.MaxUtilization)
	}
	if q.MinSuccessRate < 0 || q.MinSuccessRate > 1 {
		result.fail("min success rate must be in [0,1], got %v", q.MinSuccessRate)
	}
	return result
}

// CommandValidatorConfig tunes the shell-command gate.
type CommandValidatorConfig struct {
	AllowedCommands  []string
	MaxCommandLength int
	MaxArgLength     int
}

// CommandValidator gates the allowlisted command surface. Arguments are
// rejected on any shell metacharacter, substitution, or expansion.
type CommandValidator struct {
	allowed    map[string]bool
	maxCommand int
	maxArg     int
}

// forbiddenArgChars are shell metacharacters never valid in an argument.
const forbiddenArgChars = ";|&><{[*?~\n\r\x00"

var (
	commandSubstitution = regexp.MustCompile("\\$\\(|`")
	variableExpansion   = regexp.MustCompile(`\$\{?[A-Za-z_]`)
)

// NewCommandValidator creates the gate.
func NewCommandValidator(cfg CommandValidatorConfig) *CommandValidator {
	allowed := make(map[string]bool, len(cfg.AllowedCommands))
	for _, c := range cfg.AllowedCommands {
		allowed[c] = true
	}
	maxCommand := cfg.MaxCommandLength
	if maxCommand < 1 {
		maxCommand = 1000
	}
	maxArg := cfg.MaxArgLength
	if maxArg < 1 {
		maxArg = 255
	}
	return &CommandValidator{
		allowed:    allowed,
		maxCommand: maxCommand,
		maxArg:     maxArg,
	}
}

// Validate checks a full command line. The first field must be allowlisted;
// every argument must be free of shell metacharacters.
func (v *CommandValidator) Validate(commandLine string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	trimmed := strings.TrimSpace(commandLine)
	if trimmed == "" {
		result.fail("command must not be empty")
		return result
	}
	if len(trimmed) > v.maxCommand {
		result.fail("command exceeds %d characters", v.maxCommand)
		return result
	}

	fields := strings.Fields(trimmed)
	if !v.allowed[fields[0]] {
		result.fail("command %q is not in the allowlist", fields[0])
		return result
	}

	for _, arg := range fields[1:] {
		if len(arg) > v.maxArg {
			result.fail("argument exceeds %d characters", v.maxArg)
			continue
		}
		if strings.ContainsAny(arg, forbiddenArgChars) {
			result.fail("argument %q contains forbidden characters", arg)
			continue
		}
		if commandSubstitution.MatchString(arg) {
			result.fail("argument %q contains command substitution", arg)
			continue
		}
		if variableExpansion.MatchString(arg) {
			result.fail("argument %q contains variable expansion", arg)
		}
	}

	return result
}

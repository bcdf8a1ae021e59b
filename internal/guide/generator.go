// Package guide writes execution guides for retrying a browsing task from
// stored plans, navigation graphs and the evaluator's notes on the last try.
package guide

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
)

// TaskType is a coarse category of a task, used to steer the guide.
type TaskType string

const (
	TaskAuthentication TaskType = "Authentication"
	TaskSearch         TaskType = "Search"
	TaskCreation       TaskType = "Creation/Booking"
	TaskDeletion       TaskType = "Deletion/Cancellation"
	TaskNavigation     TaskType = "Navigation"
	TaskGeneral        TaskType = "General"
)

// Categories are checked in order; the first with a matching keyword wins.
var taskKeywords = []struct {
	kind     TaskType
	keywords []string
}{
	{TaskAuthentication, []string{"login", "log in", "sign in", "authenticate"}},
	{TaskSearch, []string{"search", "find", "look for"}},
	{TaskCreation, []string{"save", "add", "create", "book"}},
	{TaskDeletion, []string{"remove", "delete", "cancel"}},
	{TaskNavigation, []string{"navigate", "go to", "visit"}},
}

// ClassifyTask picks the task type from keywords in the task text.
func ClassifyTask(task string) TaskType {
	lower := strings.ToLower(task)
	for _, c := range taskKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.kind
			}
		}
	}
	return TaskGeneral
}

// Input is everything the generator needs. It is not modified.
type Input struct {
	Task              string
	WebsiteURL        string
	RAGContext        string
	NavigationContext string
	PreviousGuide     string
	AttemptCount      int
}

// Generator turns an Input into a guide with one LLM call.
type Generator struct {
	llm    schemas.LLMClient
	logger *zap.Logger
}

func NewGenerator(llm schemas.LLMClient, logger *zap.Logger) *Generator {
	return &Generator{llm: llm, logger: logger.Named("guide_generator")}
}

// Generate returns the model's guide. LLM errors are returned unchanged in
// kind; callers decide whether to fall back.
func (g *Generator) Generate(ctx context.Context, in Input) (string, error) {
	if strings.TrimSpace(in.Task) == "" {
		return "", fmt.Errorf("task is required to generate a guide")
	}
	req := schemas.GenerationRequest{
		SystemPrompt: SystemPrompt,
		UserPrompt:   UserPrompt(in),
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{Temperature: 0.2},
	}

	start := time.Now()
	out, err := g.llm.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("guide generation failed: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("guide generation returned an empty guide")
	}
	g.logger.Info("Generated guide.",
		zap.String("task_type", string(ClassifyTask(in.Task))),
		zap.Int("attempt", in.AttemptCount),
		zap.Int("length", len(out)),
		zap.Duration("duration", time.Since(start)))
	return out, nil
}

// UserPrompt renders the user turn for in.
func UserPrompt(in Input) string {
	return fmt.Sprintf(userPromptTemplate,
		in.Task,
		ClassifyTask(in.Task),
		orDefault(in.RAGContext, NoPlansFound),
		orDefault(in.NavigationContext, noGraphs),
		FormatPreviousGuide(in.PreviousGuide),
		in.WebsiteURL,
		in.AttemptCount)
}

// FormatPreviousGuide wraps the earlier attempt's guide for the prompt.
func FormatPreviousGuide(prev string) string {
	prev = strings.TrimSpace(prev)
	if prev == "" {
		return noPreviousGuide
	}
	return fmt.Sprintf(previousGuideTemplate, prev)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// Fallback is the guide used when generation fails.
func Fallback(task, previousGuide string) string {
	parts := []string{
		"## Fallback Guide (Generated due to system error)",
		"",
		"**Task:** " + task,
		"",
		"### Basic Approach:",
		"1. Open the website",
		"2. Locate the elements the task needs",
		"3. Work through the actions in a sensible order",
		"4. Confirm each step worked before the next one",
		"5. Look for a clear sign that the task is done",
		"",
	}
	if prev := strings.TrimSpace(previousGuide); prev != "" {
		parts = append(parts, "### Previous Attempt Insights:", prev, "")
	}
	parts = append(parts, "**Note:** This guide is generic. Review the task and earlier attempts for more specific direction.")
	return strings.Join(parts, "\n")
}

package schemas

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// VerdictStatus is the evaluator's classification of a task attempt.
type VerdictStatus string

const (
	StatusSuccess    VerdictStatus = "SUCCESS"
	StatusFailure    VerdictStatus = "FAILURE"
	StatusImpossible VerdictStatus = "IMPOSSIBLE"
)

// AllStatuses lists the statuses in keyword-scan priority order.
var AllStatuses = []VerdictStatus{StatusSuccess, StatusFailure, StatusImpossible}

func (s VerdictStatus) String() string { return string(s) }

// Valid reports whether s is one of the three known statuses.
func (s VerdictStatus) Valid() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusImpossible:
		return true
	}
	return false
}

// ParseVerdictStatus maps free text such as "'success'" onto a status.
func ParseVerdictStatus(s string) (VerdictStatus, bool) {
	v := VerdictStatus(strings.ToUpper(strings.Trim(strings.TrimSpace(s), `'"`)))
	return v, v.Valid()
}

// Verdict is the triple carried by the <verdict> block.
type Verdict struct {
	Status     VerdictStatus `json:"status"`
	WebsiteURL string        `json:"website_url"`
	TaskTitle  string        `json:"task_title"`
}

// OutgoingLink is an edge from one page to another in a navigation graph.
type OutgoingLink struct {
	Target string `json:"target"`
	Action string `json:"action"`
}

// NavigationPage is a single page observed while browsing.
type NavigationPage struct {
	URL           string         `json:"url"`
	Layout        string         `json:"layout"`
	Elements      []string       `json:"elements"`
	OutgoingLinks []OutgoingLink `json:"outgoing_links"`
	VisitedSteps  []int          `json:"visited_steps,omitempty"`
}

// NavigationGraph maps page names to pages. It is also the on-disk document format.
type NavigationGraph map[string]NavigationPage

// PageNames returns the page names in lexical order.
func (g NavigationGraph) PageNames() []string {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseSection names a part of the evaluator response.
type ParseSection string

const (
	SectionNavigationGraph ParseSection = "navigation_graph"
	SectionVerdict         ParseSection = "verdict"
	SectionFailureGuide    ParseSection = "failure_guide"
	SectionGuides          ParseSection = "guides"
)

// ParseIssue records a section that was missing or malformed and replaced by its default.
type ParseIssue struct {
	Section ParseSection `json:"section"`
	Reason  string       `json:"reason"`
}

func (i ParseIssue) Error() string {
	return fmt.Sprintf("%s: %s", i.Section, i.Reason)
}

func (i ParseIssue) Is(target error) bool { return target == ErrParse }

// ParsedResponse is the structured form of one evaluator response.
type ParsedResponse struct {
	NavigationGraph NavigationGraph   `json:"navigation_graph"`
	Verdict         Verdict           `json:"verdict"`
	Guides          map[string]string `json:"guides"`
	FailureGuide    *string           `json:"failure_guide,omitempty"`
	RawResponse     string            `json:"raw_response"`
	Issues          []ParseIssue      `json:"issues,omitempty"`
}

// HasFailureGuide reports whether a non-empty failure guide was extracted.
func (p *ParsedResponse) HasFailureGuide() bool {
	return p.FailureGuide != nil && *p.FailureGuide != ""
}

// FailureGuideText returns the failure guide or "".
func (p *ParsedResponse) FailureGuideText() string {
	if p.FailureGuide == nil {
		return ""
	}
	return *p.FailureGuide
}

// PlanRecord is a stored plan. Embedding is derived from TaskTitle.
type PlanRecord struct {
	ID            string    `json:"id"`
	TaskTitle     string    `json:"task_title"`
	Plan          string    `json:"plan"`
	TaskID        string    `json:"task_id"`
	ExecutionDate time.Time `json:"execution_date"`
	Embedding     []float32 `json:"embedding,omitempty"`
}

// ScoredPlan is a plan returned from a similarity query.
type ScoredPlan struct {
	PlanRecord
	// Similarity is cosine similarity in [-1, 1].
	Similarity float64 `json:"similarity"`
}

// MessageRole tags the author of a Message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Image is an inline image attached to a message.
type Image struct {
	MimeType string `json:"mime_type"`
	// Data is base64 encoded.
	Data string `json:"data"`
}

// Message is one role-tagged entry in a multimodal conversation.
type Message struct {
	Role   MessageRole `json:"role"`
	Text   string      `json:"text"`
	Images []Image     `json:"images,omitempty"`
}

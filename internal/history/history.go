// Package history converts recorded browser-agent runs into LLM-ready messages.
package history

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/llmutil"
)

// Histories carry one base64 screenshot per step and get large, so decoding
// goes through json-iterator.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxURLInDescription = 120

// History is a recorded agent run.
type History struct {
	Steps []RawStep `json:"history"`
}

// RawStep is one step exactly as the agent recorded it.
type RawStep struct {
	ModelOutput *ModelOutput `json:"model_output"`
	State       StepState    `json:"state"`
}

// ModelOutput holds the actions the agent decided on for a step.
type ModelOutput struct {
	Action []Action `json:"action"`
}

// Action maps a single action name to its parameters,
// e.g. {"click_element_by_index": {"index": 12}}.
type Action map[string]map[string]interface{}

// Name returns the action name. When several keys are present the lexically
// first one wins.
func (a Action) Name() string {
	names := make([]string, 0, len(a))
	for k := range a {
		names = append(names, k)
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return names[0]
}

// StepState is the browser state observed at a step.
type StepState struct {
	URL            string `json:"url"`
	Title          string `json:"title,omitempty"`
	Screenshot     string `json:"screenshot,omitempty"`
	ScreenshotPath string `json:"screenshot_path,omitempty"`
}

// Step is the converted form of a RawStep.
type Step struct {
	Index       int
	URL         string
	Description string
	// Screenshot is base64 PNG data, possibly empty.
	Screenshot string
}

// Load reads a history file. Screenshots referenced by path are inlined;
// relative paths resolve against the history file's directory.
func Load(path string) (*History, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, schemas.NewStorageError("open history", path, err)
	}
	defer f.Close()

	var h History
	if err := json.NewDecoder(f).Decode(&h); err != nil {
		return nil, fmt.Errorf("failed to decode history %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i := range h.Steps {
		st := &h.Steps[i].State
		if st.Screenshot != "" || st.ScreenshotPath == "" {
			continue
		}
		p := st.ScreenshotPath
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, schemas.NewStorageError("read screenshot", p, err)
		}
		st.Screenshot = base64.StdEncoding.EncodeToString(data)
	}
	return &h, nil
}

// Decode parses a history from raw JSON bytes.
func Decode(data []byte) (*History, error) {
	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return &h, nil
}

// ToSteps converts every recorded step into a textual description.
func ToSteps(h *History) []Step {
	if h == nil {
		return nil
	}
	steps := make([]Step, 0, len(h.Steps))
	for i, raw := range h.Steps {
		steps = append(steps, Step{
			Index:       i,
			URL:         raw.State.URL,
			Description: describeStep(i, raw),
			Screenshot:  raw.State.Screenshot,
		})
	}
	return steps
}

func describeStep(i int, raw RawStep) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This is step %d, ", i)

	if raw.State.URL != "" {
		fmt.Fprintf(&b, "the screenshot has been taken at this url %s. ", truncateURL(raw.State.URL))
	}

	var actions []string
	if raw.ModelOutput != nil {
		for _, a := range raw.ModelOutput.Action {
			actions = append(actions, DescribeAction(a))
		}
	}

	switch len(actions) {
	case 0:
		b.WriteString("No actions found for this step")
	case 1:
		b.WriteString(actions[0])
	default:
		for j, a := range actions {
			if j > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "Action %d of step %d: %s", j, i, a)
		}
	}
	return b.String()
}

func truncateURL(u string) string {
	return llmutil.TruncateString(u, maxURLInDescription)
}

// MessageOptions controls ToMessages.
type MessageOptions struct {
	// MaxImages keeps only the last N screenshots. 0 keeps all.
	MaxImages int
	// TextOnly drops every screenshot.
	TextOnly bool
}

// ToMessages turns steps into user messages with the step screenshot attached.
func ToMessages(steps []Step, opts MessageOptions) []schemas.Message {
	firstImage := 0
	if opts.MaxImages > 0 {
		withImage := 0
		for _, s := range steps {
			if s.Screenshot != "" {
				withImage++
			}
		}
		firstImage = withImage - opts.MaxImages
	}

	msgs := make([]schemas.Message, 0, len(steps))
	seen := 0
	for _, s := range steps {
		msg := schemas.Message{Role: schemas.RoleUser, Text: s.Description}
		if s.Screenshot != "" {
			if !opts.TextOnly && seen >= firstImage {
				msg.Images = []schemas.Image{{MimeType: "image/png", Data: stripDataURI(s.Screenshot)}}
			}
			seen++
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func stripDataURI(s string) string {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}

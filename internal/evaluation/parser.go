package evaluation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/llmutil"
)

const (
	verdictTag      = "verdict"
	failureGuideTag = "failure_guide"
)

var (
	// parenTupleRegex matches the opening of ('STATUS', ...
	parenTupleRegex = regexp.MustCompile(`(?i)\(\s*['"]?\s*(SUCCESS|FAILURE|IMPOSSIBLE)\s*['"]?\s*,`)
	// bareTupleRegex matches a line starting with STATUS, ...
	bareTupleRegex = regexp.MustCompile(`(?im)^\s*['"]?(SUCCESS|FAILURE|IMPOSSIBLE)['"]?\s*,`)
	// keywordRegexes are tried in schemas.AllStatuses order.
	keywordRegexes = map[schemas.VerdictStatus]*regexp.Regexp{
		schemas.StatusSuccess:    regexp.MustCompile(`\bSUCCESS\b`),
		schemas.StatusFailure:    regexp.MustCompile(`\bFAILURE\b`),
		schemas.StatusImpossible: regexp.MustCompile(`\bIMPOSSIBLE\b`),
	}
)

// Parser turns raw evaluator output into a ParsedResponse. Each section is
// extracted on its own; a broken section becomes its zero value plus a
// ParseIssue and never affects the others.
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a Parser. A nil logger disables logging.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger.Named("response_parser")}
}

// Parse never fails. The raw text is always kept in RawResponse and the
// verdict status is always one of the three known values.
func (p *Parser) Parse(raw string) *schemas.ParsedResponse {
	res := &schemas.ParsedResponse{
		NavigationGraph: schemas.NavigationGraph{},
		Guides:          map[string]string{},
		Verdict:         schemas.Verdict{Status: schemas.StatusFailure},
		RawResponse:     raw,
	}

	verdictBlock, hasVerdict := llmutil.ExtractTag(raw, verdictTag)
	guideBlock, hasGuide := llmutil.ExtractTag(raw, failureGuideTag)

	var blocks []llmutil.FencedBlock
	for _, b := range llmutil.FencedBlocks(raw) {
		if b.Lang != "" && b.Lang != "json" {
			continue
		}
		if hasGuide && b.Start >= guideBlock.Start && b.End <= guideBlock.End {
			continue
		}
		blocks = append(blocks, b)
	}

	graphIdx := p.parseGraph(raw, res, blocks, verdictBlock, hasVerdict)
	p.parseVerdict(raw, res, verdictBlock, hasVerdict)
	p.parseFailureGuide(res, guideBlock, hasGuide)
	p.parseGuides(raw, res, blocks, graphIdx, verdictBlock, hasVerdict, guideBlock, hasGuide)

	for _, issue := range res.Issues {
		p.logger.Debug("Recovered from malformed response section.",
			zap.String("section", string(issue.Section)),
			zap.String("reason", issue.Reason))
	}
	return res
}

// Parse is a convenience wrapper using a silent Parser.
func Parse(raw string) *schemas.ParsedResponse {
	return NewParser(nil).Parse(raw)
}

func (p *Parser) addIssue(res *schemas.ParsedResponse, section schemas.ParseSection, format string, args ...interface{}) {
	res.Issues = append(res.Issues, schemas.ParseIssue{Section: section, Reason: fmt.Sprintf(format, args...)})
}

// parseGraph returns the index in blocks of the block used for the graph, or -1.
func (p *Parser) parseGraph(raw string, res *schemas.ParsedResponse, blocks []llmutil.FencedBlock, verdict llmutil.TaggedBlock, hasVerdict bool) int {
	var lastErr error
	fencedBefore := false
	for i, b := range blocks {
		if hasVerdict && b.End > verdict.Start {
			break
		}
		fencedBefore = true
		g, err := DecodeGraph(b.Body)
		if err == nil {
			res.NavigationGraph = g
			return i
		}
		if _, guidesErr := DecodeGuides(b.Body); guidesErr != nil {
			lastErr = err
		}
		if !hasVerdict {
			// Without a verdict anchor only the leading block can be the graph.
			break
		}
	}

	// No fenced graph: try a bare object in the text before the verdict.
	if hasVerdict && !fencedBefore {
		head := raw[:verdict.Start]
		if strings.Contains(head, "{") {
			g, err := decodeBare(head, DecodeGraph)
			if err == nil {
				res.NavigationGraph = g
				return -1
			}
			lastErr = err
		}
	}

	if lastErr != nil {
		p.addIssue(res, schemas.SectionNavigationGraph, "malformed navigation graph: %v", lastErr)
	}
	return -1
}

func (p *Parser) parseVerdict(raw string, res *schemas.ParsedResponse, block llmutil.TaggedBlock, ok bool) {
	if !ok {
		// Some models drop the tags but still print the tuple.
		if v, found := parseTuple(raw, parenTupleRegex); found {
			res.Verdict = v
			p.addIssue(res, schemas.SectionVerdict, "verdict tags missing; tuple found in body")
			p.checkVerdictFields(res)
			return
		}
		p.addIssue(res, schemas.SectionVerdict, "verdict block missing; defaulting to %s", schemas.StatusFailure)
		return
	}

	if v, found := parseTuple(block.Content, parenTupleRegex); found {
		res.Verdict = v
		p.checkVerdictFields(res)
		return
	}
	if v, found := parseTuple(block.Content, bareTupleRegex); found {
		res.Verdict = v
		p.checkVerdictFields(res)
		return
	}
	for _, status := range schemas.AllStatuses {
		if keywordRegexes[status].MatchString(block.Content) {
			res.Verdict = schemas.Verdict{Status: status}
			p.addIssue(res, schemas.SectionVerdict, "verdict tuple not found; status taken from keyword %s", status)
			return
		}
	}
	p.addIssue(res, schemas.SectionVerdict, "no status in verdict block; defaulting to %s", schemas.StatusFailure)
}

// parseTuple reads the last STATUS, URL, TITLE triple matched by re.
// Quoted fields may contain commas and span lines. An unquoted title runs to
// the end of the tuple, or of the line for the bare form.
func parseTuple(s string, re *regexp.Regexp) (schemas.Verdict, bool) {
	locs := re.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return schemas.Verdict{}, false
	}
	loc := locs[len(locs)-1]
	status, ok := schemas.ParseVerdictStatus(s[loc[2]:loc[3]])
	if !ok {
		return schemas.Verdict{}, false
	}

	rest := s[loc[1]:]
	fields := splitTuple(rest, re == parenTupleRegex)

	v := schemas.Verdict{Status: status}
	if len(fields) > 0 {
		v.WebsiteURL = fields[0].text
	}
	if len(fields) > 1 {
		title := fields[1]
		if title.quoted {
			v.TaskTitle = title.text
		} else {
			v.TaskTitle = cleanField(rest[title.start:fields[len(fields)-1].end])
		}
	}
	return v, true
}

// tupleField is one comma separated value; start and end bound its raw text.
type tupleField struct {
	text       string
	quoted     bool
	start, end int
}

// splitTuple scans the fields after the status. Quoted values are atomic.
// Scanning stops at an unquoted ')' when paren is set, or at a newline
// otherwise.
func splitTuple(s string, paren bool) []tupleField {
	stop := func(c byte) bool {
		if paren {
			return c == ')'
		}
		return c == '\n'
	}
	isSpace := func(c byte) bool {
		if paren {
			return c == ' ' || c == '\t' || c == '\r' || c == '\n'
		}
		return c == ' ' || c == '\t' || c == '\r'
	}

	var fields []tupleField
	i := 0
	for i < len(s) {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) || stop(s[i]) {
			break
		}

		start := i
		if q := s[i]; q == '\'' || q == '"' || q == '`' {
			if j := closingQuote(s, i+1, q); j >= 0 {
				text := strings.ReplaceAll(s[i+1:j], `\`+string(q), string(q))
				fields = append(fields, tupleField{text: strings.TrimSpace(text), quoted: true, start: start, end: j + 1})
				i = j + 1
				for i < len(s) && s[i] != ',' && !stop(s[i]) {
					i++
				}
				if i < len(s) && s[i] == ',' {
					i++
					continue
				}
				break
			}
		}

		for i < len(s) && s[i] != ',' && !stop(s[i]) {
			i++
		}
		fields = append(fields, tupleField{text: cleanField(s[start:i]), start: start, end: i})
		if i < len(s) && s[i] == ',' {
			i++
			continue
		}
		break
	}
	return fields
}

// closingQuote returns the index of the unescaped q at or after i, or -1.
func closingQuote(s string, i int, q byte) int {
	for ; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case q:
			return i
		}
	}
	return -1
}

func cleanField(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `'"`+"`")
	return strings.TrimSpace(s)
}

func (p *Parser) checkVerdictFields(res *schemas.ParsedResponse) {
	if res.Verdict.WebsiteURL == "" {
		p.addIssue(res, schemas.SectionVerdict, "verdict tuple has no website URL")
	}
	if res.Verdict.TaskTitle == "" {
		p.addIssue(res, schemas.SectionVerdict, "verdict tuple has no task title")
	}
}

func (p *Parser) parseFailureGuide(res *schemas.ParsedResponse, block llmutil.TaggedBlock, ok bool) {
	if !ok {
		return
	}
	if block.Content == "" {
		p.addIssue(res, schemas.SectionFailureGuide, "empty failure_guide block")
		return
	}
	text := block.Content
	res.FailureGuide = &text
}

func (p *Parser) parseGuides(raw string, res *schemas.ParsedResponse, blocks []llmutil.FencedBlock, graphIdx int,
	verdict llmutil.TaggedBlock, hasVerdict bool, guide llmutil.TaggedBlock, hasGuide bool) {

	after := 0
	if hasVerdict {
		after = verdict.End
	}
	if hasGuide && guide.End > after {
		after = guide.End
	}

	var lastErr error
	for i := len(blocks) - 1; i >= 0; i-- {
		b := blocks[i]
		if i == graphIdx || b.Start < after {
			continue
		}
		g, err := DecodeGuides(b.Body)
		if err == nil {
			res.Guides = g
			return
		}
		lastErr = err
	}

	if lastErr == nil && after > 0 {
		tail := raw[after:]
		if strings.Contains(tail, "{") && !strings.Contains(tail, "```") {
			g, err := decodeBare(tail, DecodeGuides)
			if err == nil {
				res.Guides = g
				return
			}
			lastErr = err
		}
	}

	if lastErr != nil {
		p.addIssue(res, schemas.SectionGuides, "malformed guides block: %v", lastErr)
		return
	}
	p.addIssue(res, schemas.SectionGuides, "guides block missing")
}

// decodeBare pulls the outermost JSON object out of prose and hands it to decode.
func decodeBare[T any](s string, decode func(string) (T, error)) (T, error) {
	obj, err := llmutil.ParseJSONResponse[json.RawMessage](s)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode(string(*obj))
}

// DecodeGraph decodes a navigation graph document. Every top-level value
// must be an object; anything else is rejected so a guides map is never
// mistaken for a graph.
func DecodeGraph(s string) (schemas.NavigationGraph, error) {
	raw, err := decodeObject(s)
	if err != nil {
		return nil, err
	}
	for name, v := range raw {
		if !isJSONObject(v) {
			return nil, fmt.Errorf("page %q is not an object", name)
		}
	}
	var g schemas.NavigationGraph
	if err := unmarshalLenient(s, &g); err != nil {
		return nil, err
	}
	if g == nil {
		g = schemas.NavigationGraph{}
	}
	return g, nil
}

// DecodeGuides decodes a title to instructions map. Non-string values are
// kept as their compact JSON text.
func DecodeGuides(s string) (map[string]string, error) {
	raw, err := decodeObject(s)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for title, v := range raw {
		if isJSONObject(v) {
			return nil, fmt.Errorf("guide %q is an object", title)
		}
		var text string
		if err := json.Unmarshal(v, &text); err != nil {
			var buf bytes.Buffer
			if json.Compact(&buf, v) != nil {
				return nil, fmt.Errorf("guide %q: %w", title, err)
			}
			text = buf.String()
		}
		out[title] = text
	}
	return out, nil
}

func decodeObject(s string) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := unmarshalLenient(s, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("not a JSON object")
	}
	return raw, nil
}

func unmarshalLenient(s string, v interface{}) error {
	err := json.Unmarshal([]byte(s), v)
	if err == nil {
		return nil
	}
	if repaired := llmutil.RepairJSON(s); repaired != s {
		if json.Unmarshal([]byte(repaired), v) == nil {
			return nil
		}
	}
	return err
}

func isJSONObject(v json.RawMessage) bool {
	t := strings.TrimSpace(string(v))
	return strings.HasPrefix(t, "{")
}

package history

import (
	"fmt"
	"strconv"
)

// DescribeAction renders one agent action as a sentence.
func DescribeAction(a Action) string {
	name := a.Name()
	p := a[name]

	switch name {
	case "click_element_by_index":
		return fmt.Sprintf("The user clicked on element %s.", param(p, "index", "unknown"))
	case "get_dropdown_options":
		return fmt.Sprintf("The user clicked on dropdown option %s.", param(p, "index", "unknown"))
	case "select_dropdown_option":
		if text := param(p, "text", ""); text != "" {
			return fmt.Sprintf("The user clicked on dropdown option %s.", text)
		}
		return fmt.Sprintf("The user clicked on dropdown option %s.", param(p, "index", "unknown"))
	case "input_text":
		return fmt.Sprintf("The user typed: '%s' in element %s.", param(p, "text", "unknown text"), param(p, "index", "unknown"))
	case "scroll_down":
		return fmt.Sprintf("The user scrolled down for %s pixels.", param(p, "amount", "unknown"))
	case "scroll_up":
		return fmt.Sprintf("The user scrolled up for %s pixels.", param(p, "amount", "unknown"))
	case "switch_tab":
		return fmt.Sprintf("The user switched to tab %s.", param(p, "page_id", "unknown"))
	case "go_to_url":
		return fmt.Sprintf("The user navigated to: %s", param(p, "url", "unknown url"))
	case "write_file":
		return fmt.Sprintf("The user wrote to file: %s", param(p, "file_name", "unknown file"))
	case "search_google":
		return fmt.Sprintf("The user searched Google for: '%s'", param(p, "query", "unknown query"))
	case "wait":
		return fmt.Sprintf("The user waited for %s seconds.", param(p, "seconds", "unknown"))
	case "done":
		return "The user stopped the tasks"
	case "":
		return "The user performed an unknown action."
	default:
		return fmt.Sprintf("The user performed action: %s", name)
	}
}

// param formats a JSON-decoded parameter. Whole numbers print without a decimal point.
func param(p map[string]interface{}, key, def string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

package grok

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// FormatToolCall renders one buffered legacy tool-call run. The content is the
// concatenation of every token in the run; an empty result means nothing
// should be shown (unparsable payload, unnamed call or unknown tag).
func FormatToolCall(tag, content string) string {
	if !gjson.Valid(content) {
		return ""
	}
	data := gjson.Parse(content)

	switch tag {
	case TagFunctionCall:
		if !data.IsObject() {
			return ""
		}
		name := data.Get("name").String()
		args := FunctionCall{Name: name, Arguments: parseArguments(data.Get("arguments"))}
		switch name {
		case "web_search", "search":
			if query := args.Arg("query"); query != "" {
				return "\n🔍 搜索: " + query + "\n"
			}
			return "\n🔍 " + name + "\n"
		case "browse", "browse_web":
			if url := args.Arg("url"); url != "" {
				return "\n🌐 浏览: " + url + "\n"
			}
			return "\n🌐 " + name + "\n"
		case "code_execution":
			return "\n🖥️ 执行代码\n"
		case "":
			return ""
		default:
			return "\n🔧 " + name + "\n"
		}
	case TagRawFunctionResult:
		if data.IsObject() {
			if truthy(data.Get("error")) || data.Get("success").Type == gjson.False {
				return "\n❌ 执行失败\n"
			}
		}
		return "\n✅ 执行成功\n"
	}
	return ""
}

// formatFunctionCall renders a structured (expert mode) tool invocation.
func formatFunctionCall(prefix string, call FunctionCall) string {
	switch call.Name {
	case "web_search":
		if query := call.Arg("query"); query != "" {
			return prefix + "🔍 搜索: " + query + "\n"
		}
	case "web_browse":
		if url := call.Arg("url"); url != "" {
			return prefix + "🌐 浏览: " + url + "\n"
		}
	case "chatroom_send":
		if msg := call.Arg("message"); msg != "" {
			return prefix + "💬 → " + call.Arg("to") + ": " + truncateRunes(msg, 100) + "\n"
		}
	case "":
	default:
		return prefix + "🔧 " + call.Name + "\n"
	}
	return ""
}

// formatToolResult renders a structured tool outcome. Search results and code
// results are reported as separate lines.
func formatToolResult(prefix string, ev *Event) []string {
	var lines []string
	if ev.SearchResultCount > 0 {
		lines = append(lines, prefix+"📄 找到 "+strconv.Itoa(ev.SearchResultCount)+" 条结果\n")
	}
	if code := ev.Code; code != nil {
		if code.ExitCode == 0 {
			if stdout := strings.TrimSpace(code.Stdout); stdout != "" {
				lines = append(lines, prefix+"✅ 执行成功: "+truncateRunes(stdout, 200)+"\n")
			} else {
				lines = append(lines, prefix+"✅ 执行成功\n")
			}
		} else {
			reason := "未知错误"
			if stderr := strings.TrimSpace(code.Stderr); stderr != "" {
				reason = stderr[strings.LastIndex(stderr, "\n")+1:]
			}
			lines = append(lines, prefix+"❌ 执行失败: "+reason+"\n")
		}
	}
	return lines
}

// renderSearchResults formats inline web search results as a markdown list.
func renderSearchResults(results []WebSearchResult) string {
	var sb strings.Builder
	for _, r := range results {
		sb.WriteString("\n- [" + r.Title + "](" + r.URL + " \"" + strings.ReplaceAll(r.Preview, "\n", "") + "\")")
	}
	sb.WriteString("\n")
	return sb.String()
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func rolloutPrefix(rolloutID string) string {
	if rolloutID == "" {
		return ""
	}
	return "[" + rolloutID + "] "
}

package grok

import (
	"github.com/tidwall/gjson"
)

// EventKind identifies the primary payload of one upstream line.
type EventKind int

const (
	EventNone EventKind = iota
	EventImageProgress
	EventVideoProgress
	EventModelResponse
	EventFunctionCall
	EventToolResult
	EventToken
)

var eventKindNames = [...]string{
	EventNone:          "none",
	EventImageProgress: "image_progress",
	EventVideoProgress: "video_progress",
	EventModelResponse: "model_response",
	EventFunctionCall:  "function_call",
	EventToolResult:    "tool_result",
	EventToken:         "token",
}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return "unknown"
}

// Message tags that mark tool traffic inside the token stream.
const (
	TagFunctionCall      = "function_call"
	TagRawFunctionResult = "raw_function_result"
)

type WebSearchResult struct {
	Title   string
	URL     string
	Preview string
}

type ImageProgress struct {
	Index    int
	Progress float64
}

type VideoProgress struct {
	Progress     float64
	VideoURL     string
	ThumbnailURL string
}

// Done reports whether this is the terminal tick carrying the final video.
func (v VideoProgress) Done() bool {
	return v.Progress == 100
}

type ModelResponse struct {
	ResponseID         string
	Message            string
	GeneratedImageURLs []string
	// ModelHash comes from metadata.llm_info and overrides the sticky fingerprint.
	ModelHash string
}

type FunctionCall struct {
	Name string
	// Arguments is the decoded argument object. String encoded arguments are
	// parsed; unparsable ones yield an empty result.
	Arguments gjson.Result
}

// Arg returns the string form of one argument, or "" when absent.
func (f FunctionCall) Arg(key string) string {
	if !f.Arguments.IsObject() {
		return ""
	}
	return f.Arguments.Get(key).String()
}

type CodeExecutionResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Event is one decoded upstream line. Metadata fields (ModelHash, ResponseID)
// are filled for every kind; the remaining fields depend on Kind.
type Event struct {
	Kind EventKind

	ModelHash  string
	ResponseID string

	MessageTag string
	RolloutID  string
	IsThinking bool

	Token           string
	ToolUsageCardID string
	// SearchResults holds webSearchResults.results of a token delta;
	// HasSearchResults is true whenever that list is present, even if empty.
	SearchResults    []WebSearchResult
	HasSearchResults bool

	// SearchResultCount and Code describe a structured tool result.
	SearchResultCount int
	Code              *CodeExecutionResult

	Image    ImageProgress
	Video    VideoProgress
	Model    ModelResponse
	Function FunctionCall
}

// DecodeEvent parses one NDJSON line of the form {"result":{"response":{...}}}.
// It returns false for lines that are not valid JSON.
func DecodeEvent(line []byte) (*Event, bool) {
	if !gjson.ValidBytes(line) {
		return nil, false
	}

	ev := &Event{Kind: EventNone}
	resp := gjson.GetBytes(line, "result.response")
	if !resp.IsObject() {
		return ev, true
	}

	if llm := resp.Get("llmInfo"); truthy(llm) {
		ev.ModelHash = llm.Get("modelHash").String()
	}
	if rid := resp.Get("responseId"); truthy(rid) {
		ev.ResponseID = rid.String()
	}
	ev.MessageTag = resp.Get("messageTag").String()
	ev.RolloutID = resp.Get("rolloutId").String()
	ev.IsThinking = truthy(resp.Get("isThinking"))

	if img := resp.Get("streamingImageGenerationResponse"); truthy(img) {
		ev.Kind = EventImageProgress
		ev.Image = ImageProgress{
			Index:    int(img.Get("imageIndex").Int()),
			Progress: img.Get("progress").Float(),
		}
		return ev, true
	}

	if video := resp.Get("streamingVideoGenerationResponse"); truthy(video) {
		ev.Kind = EventVideoProgress
		ev.Video = VideoProgress{
			Progress:     video.Get("progress").Float(),
			VideoURL:     video.Get("videoUrl").String(),
			ThumbnailURL: video.Get("thumbnailImageUrl").String(),
		}
		return ev, true
	}

	if mr := resp.Get("modelResponse"); truthy(mr) {
		ev.Kind = EventModelResponse
		ev.Model = ModelResponse{
			ResponseID: mr.Get("responseId").String(),
			Message:    mr.Get("message").String(),
			ModelHash:  mr.Get("metadata.llm_info.modelHash").String(),
		}
		if urls := mr.Get("generatedImageUrls"); urls.IsArray() {
			for _, u := range urls.Array() {
				ev.Model.GeneratedImageURLs = append(ev.Model.GeneratedImageURLs, u.String())
			}
		}
		return ev, true
	}

	if fc := resp.Get("functionCall"); ev.MessageTag == TagFunctionCall && truthy(fc) {
		ev.Kind = EventFunctionCall
		ev.Function = FunctionCall{
			Name:      fc.Get("name").String(),
			Arguments: parseArguments(fc.Get("arguments")),
		}
		return ev, true
	}

	web := resp.Get("webSearchResults")
	code := resp.Get("codeExecutionResult")
	if ev.MessageTag == TagRawFunctionResult && (truthy(web) || truthy(code)) {
		ev.Kind = EventToolResult
		switch {
		case web.IsObject() && web.Get("results").IsArray():
			ev.SearchResultCount = len(web.Get("results").Array())
		case web.IsArray():
			ev.SearchResultCount = len(web.Array())
		}
		if truthy(code) {
			exitCode := code.Get("exitCode")
			ev.Code = &CodeExecutionResult{
				ExitCode: -1,
				Stdout:   code.Get("stdout").String(),
				Stderr:   code.Get("stderr").String(),
			}
			if exitCode.Type == gjson.Number {
				ev.Code.ExitCode = int(exitCode.Int())
			}
		}
		return ev, true
	}

	if token := resp.Get("token"); token.Exists() && token.Type != gjson.Null {
		ev.Kind = EventToken
		ev.Token = token.String()
		if card := resp.Get("toolUsageCardId"); truthy(card) {
			ev.ToolUsageCardID = card.String()
		}
		if results := web.Get("results"); web.IsObject() && results.IsArray() {
			ev.HasSearchResults = true
			for _, r := range results.Array() {
				ev.SearchResults = append(ev.SearchResults, WebSearchResult{
					Title:   r.Get("title").String(),
					URL:     r.Get("url").String(),
					Preview: r.Get("preview").String(),
				})
			}
		}
		return ev, true
	}

	return ev, true
}

// parseArguments accepts either an argument object or a JSON encoded string.
func parseArguments(args gjson.Result) gjson.Result {
	if args.Type != gjson.String {
		return args
	}
	if !gjson.Valid(args.Str) {
		return gjson.Result{}
	}
	return gjson.Parse(args.Str)
}

// truthy mirrors JSON truthiness: null, false, 0, "", {} and [] are false.
func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		return r.Str != ""
	case gjson.JSON:
		if r.IsArray() {
			return len(r.Array()) > 0
		}
		return len(r.Map()) > 0
	default:
		return false
	}
}

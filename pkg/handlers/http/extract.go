package http

import (
	"strings"

	"github.com/valyala/fastjson"
)

// extractContent pulls the text to evaluate out of a raw request body.
// Besides the native {"content": ...} shape it understands prompt-style
// and OpenAI chat completion payloads, so gateways can forward upstream
// request or response bodies without rewriting them first.
func extractContent(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var p fastjson.Parser
	v, err := p.ParseBytes(body)
	if err != nil {
		return ""
	}

	if content := v.GetStringBytes("content"); len(content) > 0 {
		return string(content)
	}
	if prompt := v.GetStringBytes("prompt"); len(prompt) > 0 {
		return string(prompt)
	}

	// Chat completion response: first choice's message.
	if choices := v.GetArray("choices"); len(choices) > 0 {
		if content := choices[0].GetStringBytes("message", "content"); len(content) > 0 {
			return string(content)
		}
	}

	// Chat completion request: the newest message is the one under check.
	if messages := v.GetArray("messages"); len(messages) > 0 {
		last := messages[len(messages)-1]
		if content := last.GetStringBytes("content"); len(content) > 0 {
			return string(content)
		}
		if parts := last.GetArray("content"); len(parts) > 0 {
			return joinTextParts(parts)
		}
	}

	return ""
}

func joinTextParts(parts []*fastjson.Value) string {
	var sb strings.Builder
	for _, part := range parts {
		text := part.GetStringBytes("text")
		if len(text) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.Write(text)
	}
	return sb.String()
}

package handler

import (
	"bytes"
	"log"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

// renderMessageHTML 把 in_app 渠道的消息正文从 Markdown 渲染为净化后的 HTML。
// 模板由后台人工维护，允许加粗/链接等轻量排版；邮件与短信渠道保持纯文本。
func renderMessageHTML(message string) string {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(message), &buf); err != nil {
		log.Printf("[PromptAPI] render message html failed: %v", err)
		return message
	}
	return sanitizer.Sanitize(buf.String())
}

package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// missingTokenFallback 是所有缺数据占位符的统一替代文案
const missingTokenFallback = "--"

// leftoverTokenPattern 捕获替换后仍残留的 {{...}} 占位符
var leftoverTokenPattern = regexp.MustCompile(`\{\{[^{}]*\}\}`)

// tokenResolver 从用户快照解析单个占位符的值，数据缺失时返回 ok=false
type tokenResolver func(ctx *UserContext) (string, bool)

// promptTokenResolvers 列出所有受支持的模板占位符。
// 新增占位符只需在此登记解析函数，回退逻辑集中在 RenderTemplate。
var promptTokenResolvers = map[string]tokenResolver{
	"name": func(ctx *UserContext) (string, bool) {
		return ctx.Name, ctx.Name != ""
	},
	"firstName": func(ctx *UserContext) (string, bool) {
		name := strings.TrimSpace(ctx.Name)
		if name == "" {
			return "", false
		}
		if idx := strings.IndexFunc(name, func(r rune) bool { return r == ' ' || r == '\t' }); idx > 0 {
			return name[:idx], true
		}
		return name, true
	},
	"glucose.latest": func(ctx *UserContext) (string, bool) {
		return formatReading(ctx.Metrics.Glucose.Latest)
	},
	"glucose.average": func(ctx *UserContext) (string, bool) {
		if ctx.Metrics.Glucose.Average7Day == nil {
			return "", false
		}
		return fmt.Sprintf("%.1f", *ctx.Metrics.Glucose.Average7Day), true
	},
	"glucose.highDays": func(ctx *UserContext) (string, bool) {
		return strconv.Itoa(ctx.Metrics.Glucose.HighDays), true
	},
	"bp.latest": func(ctx *UserContext) (string, bool) {
		reading := ctx.Metrics.BloodPressure.Latest
		if reading == nil {
			return "", false
		}
		return fmt.Sprintf("%.0f/%.0f", reading.Systolic, reading.Diastolic), true
	},
	"bp.elevatedDays": func(ctx *UserContext) (string, bool) {
		return strconv.Itoa(ctx.Metrics.BloodPressure.ElevatedDays), true
	},
	"weight.latest": func(ctx *UserContext) (string, bool) {
		if ctx.Metrics.Weight.Latest == nil {
			return "", false
		}
		return fmt.Sprintf("%.1f", *ctx.Metrics.Weight.Latest), true
	},
	"weight.change": func(ctx *UserContext) (string, bool) {
		if ctx.Metrics.Weight.Change30Day == nil {
			return "", false
		}
		return fmt.Sprintf("%+.1f", *ctx.Metrics.Weight.Change30Day), true
	},
	"ketones.latest": func(ctx *UserContext) (string, bool) {
		if ctx.Metrics.Ketones.Latest == nil {
			return "", false
		}
		return fmt.Sprintf("%.1f", *ctx.Metrics.Ketones.Latest), true
	},
	"daysSinceLog": func(ctx *UserContext) (string, bool) {
		if ctx.DaysSinceLastLog == nil {
			return "", false
		}
		return strconv.Itoa(*ctx.DaysSinceLastLog), true
	},
	"target.protein": func(ctx *UserContext) (string, bool) {
		if ctx.Target == nil {
			return "", false
		}
		return strconv.Itoa(ctx.Target.Protein), true
	},
	"target.carbs": func(ctx *UserContext) (string, bool) {
		if ctx.Target == nil {
			return "", false
		}
		return strconv.Itoa(ctx.Target.Carbs), true
	},
	"target.calories": func(ctx *UserContext) (string, bool) {
		if ctx.Target == nil {
			return "", false
		}
		return strconv.Itoa(ctx.Target.Calories), true
	},
}

// RenderTemplate 把模板中的 {{token}} 占位符替换为用户快照里的真实数据。
// 缺数据的占位符以及未登记的占位符统一渲染为 "--"，保证残缺模板不会原样发给用户。
func RenderTemplate(template string, ctx *UserContext) string {
	rendered := template

	for token, resolve := range promptTokenResolvers {
		placeholder := "{{" + token + "}}"
		if !strings.Contains(rendered, placeholder) {
			continue
		}

		value, ok := resolve(ctx)
		if !ok {
			value = missingTokenFallback
		}
		rendered = strings.ReplaceAll(rendered, placeholder, value)
	}

	return leftoverTokenPattern.ReplaceAllString(rendered, missingTokenFallback)
}

// formatReading 以最短形式输出血糖等整数居多的读数，如 115 或 115.5
func formatReading(value *float64) (string, bool) {
	if value == nil {
		return "", false
	}
	return strconv.FormatFloat(*value, 'f', -1, 64), true
}

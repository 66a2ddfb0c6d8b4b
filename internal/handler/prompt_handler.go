package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vitalog/internal/db"
	"github.com/vitalog/internal/service"
)

type promptPayload struct {
	Key             string `json:"key"`
	Category        string `json:"category"`
	MessageTemplate string `json:"message_template"`
	Channel         string `json:"channel"`
	Active          bool   `json:"active"`
}

type rulePayload struct {
	Key           string          `json:"key"`
	PromptID      uint            `json:"prompt_id"`
	TriggerType   string          `json:"trigger_type"`
	Schedule      json.RawMessage `json:"schedule"`
	Conditions    json.RawMessage `json:"conditions"`
	CooldownHours int             `json:"cooldown_hours"`
	Priority      int             `json:"priority"`
	Active        bool            `json:"active"`
}

// ListPrompts 返回消息模板列表 JSON
func (a *API) ListPrompts(c *gin.Context) {
	prompts, err := a.prompts.ListPrompts()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取消息模板列表失败")
		return
	}

	items := make([]gin.H, 0, len(prompts))
	for _, prompt := range prompts {
		items = append(items, promptToPayload(prompt))
	}
	c.JSON(http.StatusOK, gin.H{"prompts": items})
}

// GetPrompt 返回单个消息模板
func (a *API) GetPrompt(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的模板ID")
		return
	}

	prompt, err := a.prompts.GetPrompt(id)
	if err != nil {
		handlePromptError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompt": promptToPayload(*prompt)})
}

// CreatePrompt 创建消息模板
func (a *API) CreatePrompt(c *gin.Context) {
	var payload promptPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	prompt, err := a.prompts.CreatePrompt(service.PromptInput{
		Key:             payload.Key,
		Category:        payload.Category,
		MessageTemplate: payload.MessageTemplate,
		Channel:         payload.Channel,
		Active:          payload.Active,
	})
	if err != nil {
		handlePromptError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompt": promptToPayload(*prompt)})
}

// UpdatePrompt 更新消息模板
func (a *API) UpdatePrompt(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的模板ID")
		return
	}

	var payload promptPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	prompt, err := a.prompts.UpdatePrompt(id, service.PromptInput{
		Key:             payload.Key,
		Category:        payload.Category,
		MessageTemplate: payload.MessageTemplate,
		Channel:         payload.Channel,
		Active:          payload.Active,
	})
	if err != nil {
		handlePromptError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompt": promptToPayload(*prompt)})
}

// DeletePrompt 删除消息模板；被规则引用时返回 409
func (a *API) DeletePrompt(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的模板ID")
		return
	}

	if err := a.prompts.DeletePrompt(id); err != nil {
		handlePromptError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ListRules 返回触发规则列表
func (a *API) ListRules(c *gin.Context) {
	rules, err := a.prompts.ListRules()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取规则列表失败")
		return
	}

	items := make([]gin.H, 0, len(rules))
	for _, rule := range rules {
		items = append(items, ruleToPayload(rule))
	}
	c.JSON(http.StatusOK, gin.H{"rules": items})
}

// CreateRule 创建触发规则
func (a *API) CreateRule(c *gin.Context) {
	var payload rulePayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	rule, err := a.prompts.CreateRule(service.PromptRuleInput{
		Key:            payload.Key,
		PromptID:       payload.PromptID,
		TriggerType:    payload.TriggerType,
		ScheduleJSON:   []byte(payload.Schedule),
		ConditionsJSON: []byte(payload.Conditions),
		CooldownHours:  payload.CooldownHours,
		Priority:       payload.Priority,
		Active:         payload.Active,
	})
	if err != nil {
		handlePromptError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rule": ruleToPayload(*rule)})
}

// UpdateRule 更新触发规则
func (a *API) UpdateRule(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的规则ID")
		return
	}

	var payload rulePayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	rule, err := a.prompts.UpdateRule(id, service.PromptRuleInput{
		Key:            payload.Key,
		PromptID:       payload.PromptID,
		TriggerType:    payload.TriggerType,
		ScheduleJSON:   []byte(payload.Schedule),
		ConditionsJSON: []byte(payload.Conditions),
		CooldownHours:  payload.CooldownHours,
		Priority:       payload.Priority,
		Active:         payload.Active,
	})
	if err != nil {
		handlePromptError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rule": ruleToPayload(*rule)})
}

// DeleteRule 删除触发规则
func (a *API) DeleteRule(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的规则ID")
		return
	}

	if err := a.prompts.DeleteRule(id); err != nil {
		respondError(c, http.StatusInternalServerError, "删除规则失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func promptToPayload(prompt db.Prompt) gin.H {
	return gin.H{
		"id":               prompt.ID,
		"key":              prompt.Key,
		"category":         prompt.Category,
		"message_template": prompt.MessageTemplate,
		"channel":          prompt.Channel,
		"active":           prompt.Active,
	}
}

func ruleToPayload(rule db.PromptRule) gin.H {
	item := gin.H{
		"id":             rule.ID,
		"key":            rule.Key,
		"prompt_id":      rule.PromptID,
		"trigger_type":   rule.TriggerType,
		"cooldown_hours": rule.CooldownHours,
		"priority":       rule.Priority,
		"active":         rule.Active,
	}
	if len(rule.ScheduleJSON) > 0 {
		item["schedule"] = json.RawMessage(rule.ScheduleJSON)
	}
	if len(rule.ConditionsJSON) > 0 {
		item["conditions"] = json.RawMessage(rule.ConditionsJSON)
	}
	if rule.Prompt.ID != 0 {
		item["prompt_key"] = rule.Prompt.Key
	}
	return item
}

func handlePromptError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPromptNotFound):
		respondError(c, http.StatusNotFound, "消息模板不存在")
	case errors.Is(err, service.ErrPromptRuleNotFound):
		respondError(c, http.StatusNotFound, "规则不存在")
	case errors.Is(err, service.ErrPromptReferenced):
		respondError(c, http.StatusConflict, "模板仍被规则引用，无法删除")
	case errors.Is(err, service.ErrPromptInvalid),
		errors.Is(err, service.ErrRulePayloadInvalid),
		errors.Is(err, service.ErrRuleTriggerUnknown):
		respondError(c, http.StatusBadRequest, "配置不合法")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}

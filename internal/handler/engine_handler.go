package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vitalog/internal/db"
	"github.com/vitalog/internal/service"
)

// EvaluateUser 对单个参与者按需评估全部启用规则
func (a *API) EvaluateUser(c *gin.Context) {
	userID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的用户ID")
		return
	}

	results, err := a.engine.EvaluateAndFire(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			respondError(c, http.StatusNotFound, "用户不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "评估失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deliveries": serializeResults(results)})
}

// RunSweep 手动触发一次全量参与者扫描，通常由外部定时器驱动
func (a *API) RunSweep(c *gin.Context) {
	results, err := a.engine.ProcessScheduledPrompts()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "批量扫描失败")
		return
	}

	payload := make(map[uint][]gin.H, len(results))
	total := 0
	for userID, fired := range results {
		payload[userID] = serializeResults(fired)
		total += len(fired)
	}

	c.JSON(http.StatusOK, gin.H{"users": payload, "total_deliveries": total})
}

// ListDeliveries 返回参与者的投递历史，供审计与排查使用
func (a *API) ListDeliveries(c *gin.Context) {
	userID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的用户ID")
		return
	}

	deliveries, err := a.engine.ListDeliveries(userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取投递记录失败")
		return
	}

	items := make([]gin.H, 0, len(deliveries))
	for _, delivery := range deliveries {
		items = append(items, serializeDelivery(delivery))
	}
	c.JSON(http.StatusOK, gin.H{"deliveries": items})
}

// UpdateDeliveryStatus 接收外部通道的回执（failed/opened）
func (a *API) UpdateDeliveryStatus(c *gin.Context) {
	referenceID := c.Param("reference")

	var payload struct {
		Status string `json:"status"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	delivery, err := a.engine.UpdateDeliveryStatus(referenceID, payload.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDeliveryNotFound):
			respondError(c, http.StatusNotFound, "投递记录不存在")
		case errors.Is(err, service.ErrDeliveryStatusInvalid):
			respondError(c, http.StatusBadRequest, "不支持的状态")
		default:
			respondError(c, http.StatusInternalServerError, "更新状态失败")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"delivery": serializeDelivery(*delivery)})
}

func serializeResults(results []service.DeliveryResult) []gin.H {
	items := make([]gin.H, 0, len(results))
	for _, result := range results {
		item := gin.H{
			"success":    result.Success,
			"prompt_id":  result.PromptID,
			"prompt_key": result.PromptKey,
			"rule_key":   result.RuleKey,
			"channel":    result.Channel,
			"message":    result.Message,
		}
		if result.Reference != "" {
			item["reference_id"] = result.Reference
		}
		if result.Error != "" {
			item["error"] = result.Error
		}
		// 应用内消息支持轻量 Markdown 排版
		if result.Channel == db.ChannelInApp {
			item["message_html"] = renderMessageHTML(result.Message)
		}
		items = append(items, item)
	}
	return items
}

func serializeDelivery(delivery db.PromptDelivery) gin.H {
	item := gin.H{
		"id":           delivery.ID,
		"reference_id": delivery.ReferenceID,
		"user_id":      delivery.UserID,
		"prompt_id":    delivery.PromptID,
		"fired_at":     delivery.FiredAt.Format(time.RFC3339),
		"status":       delivery.Status,
	}
	if len(delivery.TriggerContextJSON) > 0 {
		item["trigger_context"] = delivery.TriggerContextJSON
	}
	return item
}

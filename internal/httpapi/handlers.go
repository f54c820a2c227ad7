package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/botforge/botforge/internal/domain"
	apperrors "github.com/botforge/botforge/internal/errors"
	"github.com/botforge/botforge/internal/ratelimit"
)

func (a *api) webhook(c *gin.Context) {
	botID, err := strconv.ParseInt(c.Param("botId"), 10, 64)
	if err != nil {
		c.String(http.StatusNotFound, "Bot not found")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		body = nil
	}

	if err := a.Webhook.Dispatch(c.Request.Context(), botID, body); err != nil {
		if errors.Is(err, apperrors.ErrBotNotFound) {
			c.String(http.StatusNotFound, "Bot not found")
			return
		}
		a.ErrorHandler.Handle(c.Request.Context(), err)
		c.String(http.StatusInternalServerError, "Internal error")
		return
	}

	c.String(http.StatusOK, "OK")
}

type tapRequest struct {
	TelegramUserID flexID `json:"telegram_user_id"`
}

func (a *api) tap(c *gin.Context) {
	var req tapRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TelegramUserID == 0 {
		a.badRequest(c, "economy.user_id_required", "User ID required")
		return
	}
	userID := int64(req.TelegramUserID)
	if err := a.authorizeUser(c, userID); err != nil {
		a.fail(c, err)
		return
	}
	if err := a.throttleTap(c, userID); err != nil {
		a.fail(c, err)
		return
	}

	result, err := a.Economy.Tap(c.Request.Context(), c.GetInt64(ctxBotID), userID, a.Now())
	if err != nil {
		a.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"coin_balance": result.CoinBalance,
		"energy":       result.Energy,
		"total_taps":   result.TotalTaps,
	})
}

// throttleTap rejects taps above the configured rate. Limiter failures let
// the tap through.
func (a *api) throttleTap(c *gin.Context, userID int64) error {
	if a.Limiter == nil || !a.TapRule.Enabled() {
		return nil
	}

	botID := c.GetInt64(ctxBotID)
	result, err := a.Limiter.Check(c.Request.Context(), ratelimit.TapKey(botID, userID), a.TapRule)
	if err != nil {
		a.log.Warn("tap rate limiter failed", slog.Int64("bot_id", botID), slog.Any("error", err))
		return nil
	}
	if !result.Allowed {
		retryAfter := max(int(math.Ceil(time.Until(result.ResetAt).Seconds())), 1)
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		return apperrors.NewRateLimitedError()
	}
	return nil
}

func (a *api) getProgress(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID == 0 {
		a.badRequest(c, "economy.user_id_required", "User ID required")
		return
	}
	if err := a.authorizeUser(c, userID); err != nil {
		a.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	botID := c.GetInt64(ctxBotID)

	// Progress rows reference the bot, so unknown bots stop here.
	if _, err := a.Bots.GetBot(ctx, botID); err != nil {
		a.fail(c, err)
		return
	}

	progress, err := a.Economy.GetProgress(ctx, botID, userID, a.Now())
	if err != nil {
		a.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"coin_balance": progress.CoinBalance,
		"energy":       progress.Energy,
		"total_taps":   progress.TotalTaps,
		"level":        progress.Level,
	})
}

type purchaseRequest struct {
	TelegramUserID flexID `json:"telegram_user_id"`
	ItemID         flexID `json:"item_id"`
}

func (a *api) purchaseItem(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TelegramUserID == 0 || req.ItemID == 0 {
		a.badRequest(c, "economy.missing_parameters", "Missing parameters")
		return
	}
	userID := int64(req.TelegramUserID)
	if err := a.authorizeUser(c, userID); err != nil {
		a.fail(c, err)
		return
	}

	result, err := a.Economy.Purchase(c.Request.Context(), c.GetInt64(ctxBotID), userID, int64(req.ItemID))
	if err != nil {
		a.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"coin_balance": result.CoinBalance,
		"message":      a.message(c, "economy.purchase_success", "Purchase successful!"),
	})
}

type shopItemView struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Price        string `json:"price"`
	Currency     string `json:"currency"`
	RewardAmount *int64 `json:"reward_amount,omitempty"`
	RewardType   string `json:"reward_type,omitempty"`
}

func (a *api) miniAppConfig(c *gin.Context) {
	ctx := c.Request.Context()
	botID := c.GetInt64(ctxBotID)

	bot, err := a.Bots.GetBot(ctx, botID)
	if err != nil {
		a.fail(c, err)
		return
	}

	settings, err := a.Economy.Settings(ctx, botID)
	if err != nil {
		a.fail(c, err)
		return
	}

	items, err := a.Economy.ShopItems(ctx, botID)
	if err != nil {
		a.fail(c, err)
		return
	}

	views := make([]shopItemView, 0, len(items))
	for _, item := range items {
		views = append(views, shopItemView{
			ID:           item.ID,
			Name:         item.Name,
			Description:  item.Description,
			Price:        item.Price.String(),
			Currency:     string(item.Currency),
			RewardAmount: item.RewardAmount,
			RewardType:   item.RewardType,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"bot": gin.H{
			"id":         bot.ID,
			"name":       bot.Name,
			"username":   bot.Username,
			"ai_enabled": bot.AIEnabled,
			"ton_wallet": bot.TONWallet,
		},
		"mining": gin.H{
			"coin_name":            settings.CoinName,
			"coin_symbol":          settings.CoinSymbol,
			"tap_reward":           settings.TapReward,
			"max_energy":           settings.MaxEnergy,
			"energy_recharge_rate": settings.EnergyRechargeRate,
			"primary_color":        settings.PrimaryColor,
			"secondary_color":      settings.SecondaryColor,
			"text_color":           settings.TextColor,
			"background_color":     settings.BackgroundColor,
			"background_image_url": settings.BackgroundImageURL,
		},
		"shop_items": views,
	})
}

type aiChatRequest struct {
	BotID   flexID `json:"bot_id"`
	Message string `json:"message"`
	UserID  flexID `json:"user_id"`
}

func (a *api) aiChat(c *gin.Context) {
	ctx := c.Request.Context()

	var req aiChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BotID == 0 || req.Message == "" {
		a.badRequest(c, "economy.missing_parameters", "Missing parameters")
		return
	}
	botID := int64(req.BotID)

	bot, err := a.Bots.GetBot(ctx, botID)
	if err != nil && !errors.Is(err, apperrors.ErrBotNotFound) {
		a.fail(c, err)
		return
	}
	if bot == nil || !bot.AIEnabled || a.AI == nil {
		a.badRequest(c, "ai.not_enabled", "AI not enabled")
		return
	}

	if a.MiniApp.ValidateInitData {
		signed, lang, err := a.verifyInitData(ctx, botID, c.GetHeader(initDataHeader))
		if err != nil {
			a.fail(c, err)
			return
		}
		if req.UserID != 0 && int64(req.UserID) != signed {
			a.fail(c, apperrors.NewUnauthorizedError("user does not match init data"))
			return
		}
		c.Set(ctxLanguage, lang)
	}

	reply, ok := a.AI.Respond(ctx, req.Message, bot.GeminiAPIKey)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": a.message(c, "ai.unavailable", "AI service unavailable"),
		})
		return
	}

	a.Events.Record(ctx, domain.AnalyticsEvent{
		BotID:  botID,
		UserID: int64(req.UserID),
		Type:   domain.EventAIChat,
		Data:   map[string]any{"message": req.Message},
	})

	c.JSON(http.StatusOK, gin.H{"success": true, "response": reply})
}

func (a *api) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *api) live(c *gin.Context) {
	if a.Probes != nil {
		if err := a.Probes.Liveness(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (a *api) ready(c *gin.Context) {
	if a.Probes == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	report, err := a.Probes.Readiness(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": err.Error(), "components": report.Components})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": report.Components})
}

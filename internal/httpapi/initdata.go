package httpapi

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	apperrors "github.com/botforge/botforge/internal/errors"
)

const (
	initDataHeader = "X-Telegram-Init-Data"
	ctxSignedUser  = "signed_user_id"
)

// initData verifies the mini-app launch parameters against the bot's token
// when validation is enabled and stores the signed user id.
func (a *api) initData() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.MiniApp.ValidateInitData {
			c.Next()
			return
		}

		userID, lang, err := a.verifyInitData(c.Request.Context(), c.GetInt64(ctxBotID), c.GetHeader(initDataHeader))
		if err != nil {
			a.fail(c, err)
			return
		}

		c.Set(ctxSignedUser, userID)
		if lang != "" {
			c.Set(ctxLanguage, lang)
		}
		c.Next()
	}
}

func (a *api) verifyInitData(ctx context.Context, botID int64, raw string) (int64, string, error) {
	if raw == "" {
		return 0, "", apperrors.NewUnauthorizedError("missing init data")
	}

	bot, err := a.Bots.GetBot(ctx, botID)
	if err != nil {
		return 0, "", err
	}

	if err := initdata.Validate(raw, bot.Token, a.MiniApp.InitDataTTL); err != nil {
		return 0, "", apperrors.NewUnauthorizedError(fmt.Sprintf("invalid init data: %v", err))
	}

	parsed, err := initdata.Parse(raw)
	if err != nil {
		return 0, "", apperrors.NewUnauthorizedError(fmt.Sprintf("malformed init data: %v", err))
	}
	if parsed.User.ID == 0 {
		return 0, "", apperrors.NewUnauthorizedError("init data has no user")
	}

	return parsed.User.ID, parsed.User.LanguageCode, nil
}

// authorizeUser rejects requests acting for a user other than the signed one.
func (a *api) authorizeUser(c *gin.Context, userID int64) error {
	if !a.MiniApp.ValidateInitData {
		return nil
	}

	signed := c.GetInt64(ctxSignedUser)
	if signed == 0 || signed != userID {
		return apperrors.NewUnauthorizedError("user does not match init data")
	}
	return nil
}

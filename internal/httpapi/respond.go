package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/botforge/botforge/internal/errors"
	"github.com/botforge/botforge/internal/i18n"
)

const (
	ctxBotID    = "bot_id"
	ctxLanguage = "language"
)

// flexID accepts a JSON number or a numeric string.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexID(n)
	return nil
}

func (a *api) translator(c *gin.Context) i18n.Translator {
	if a.I18n == nil {
		return nil
	}

	lang := c.GetString(ctxLanguage)
	if lang == "" {
		lang = c.GetHeader("Accept-Language")
		if i := strings.IndexAny(lang, ",;-"); i > 0 {
			lang = lang[:i]
		}
	}
	return a.I18n.Translator(strings.ToLower(strings.TrimSpace(lang)))
}

func (a *api) message(c *gin.Context, key, fallback string) string {
	tr := a.translator(c)
	if tr == nil || key == "" {
		return fallback
	}
	if msg := tr.T(key); msg != key {
		return msg
	}
	return fallback
}

// fail writes {success:false, message} with the status of err.
func (a *api) fail(c *gin.Context, err error) {
	appErr := a.ErrorHandler.Handle(c.Request.Context(), err)
	c.AbortWithStatusJSON(appErr.Status(), gin.H{
		"success": false,
		"message": a.message(c, appErr.MessageKey, appErr.UserMessage),
	})
}

// badRequest writes a 400 with a localized message.
func (a *api) badRequest(c *gin.Context, key, fallback string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": a.message(c, key, fallback),
	})
}

func (a *api) botIDParam() gin.HandlerFunc {
	return func(c *gin.Context) {
		botID, err := strconv.ParseInt(c.Param("botId"), 10, 64)
		if err != nil || botID <= 0 {
			a.fail(c, apperrors.NewBotNotFoundError(0))
			return
		}
		c.Set(ctxBotID, botID)
		c.Next()
	}
}

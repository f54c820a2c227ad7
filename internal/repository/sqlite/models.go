package sqlite

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/botforge/botforge/internal/domain"
)

type botModel struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"column:bot_name;not null"`
	Token        string `gorm:"column:bot_token;not null"`
	Username     string `gorm:"column:bot_username"`
	Description  string
	WebhookURL   string `gorm:"column:webhook_url"`
	AIEnabled    bool   `gorm:"column:ai_enabled"`
	GeminiAPIKey string `gorm:"column:gemini_api_key"`
	TONWallet    string `gorm:"column:ton_wallet"`
	CreatedAt    time.Time
}

func (botModel) TableName() string { return "bots" }

func botFromDomain(b *domain.Bot) botModel {
	return botModel{
		ID:           b.ID,
		Name:         b.Name,
		Token:        b.Token,
		Username:     b.Username,
		Description:  b.Description,
		WebhookURL:   b.WebhookURL,
		AIEnabled:    b.AIEnabled,
		GeminiAPIKey: b.GeminiAPIKey,
		TONWallet:    b.TONWallet,
		CreatedAt:    b.CreatedAt,
	}
}

func (m botModel) toDomain() domain.Bot {
	return domain.Bot{
		ID:           m.ID,
		Name:         m.Name,
		Token:        m.Token,
		Username:     m.Username,
		Description:  m.Description,
		WebhookURL:   m.WebhookURL,
		AIEnabled:    m.AIEnabled,
		GeminiAPIKey: m.GeminiAPIKey,
		TONWallet:    m.TONWallet,
		CreatedAt:    m.CreatedAt,
	}
}

type commandModel struct {
	ID              int64  `gorm:"primaryKey;autoIncrement"`
	BotID           int64  `gorm:"not null;uniqueIndex:idx_commands_bot_command,priority:1"`
	Command         string `gorm:"not null;uniqueIndex:idx_commands_bot_command,priority:2"`
	ResponseType    string `gorm:"not null"`
	ResponseContent string
	URLLink         string `gorm:"column:url_link"`
	ButtonText      string
}

func (commandModel) TableName() string { return "commands" }

func commandFromDomain(c *domain.Command) commandModel {
	return commandModel{
		ID:              c.ID,
		BotID:           c.BotID,
		Command:         c.Command,
		ResponseType:    string(c.ResponseType),
		ResponseContent: c.ResponseContent,
		URLLink:         c.URLLink,
		ButtonText:      c.ButtonText,
	}
}

func (m commandModel) toDomain() domain.Command {
	return domain.Command{
		ID:              m.ID,
		BotID:           m.BotID,
		Command:         m.Command,
		ResponseType:    domain.ResponseType(m.ResponseType),
		ResponseContent: m.ResponseContent,
		URLLink:         m.URLLink,
		ButtonText:      m.ButtonText,
	}
}

type miningSettingsModel struct {
	BotID              int64 `gorm:"primaryKey;autoIncrement:false"`
	CoinName           string
	CoinSymbol         string
	InitialBalance     int64
	TapReward          int64
	MaxEnergy          int64
	EnergyRechargeRate int64
	PrimaryColor       string
	SecondaryColor     string
	TextColor          string
	BackgroundColor    string
	BackgroundImageURL string `gorm:"column:background_image_url"`
}

func (miningSettingsModel) TableName() string { return "mining_settings" }

type shopItemModel struct {
	ID              int64           `gorm:"primaryKey;autoIncrement"`
	BotID           int64           `gorm:"not null;index"`
	ItemName        string          `gorm:"not null"`
	ItemDescription string
	Price           decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	Currency        string          `gorm:"not null;default:coins"`
	RewardAmount    *int64
	RewardType      string
	IsActive        bool `gorm:"not null"`
}

func (shopItemModel) TableName() string { return "shop_items" }

func (m shopItemModel) toDomain() domain.ShopItem {
	return domain.ShopItem{
		ID:           m.ID,
		BotID:        m.BotID,
		Name:         m.ItemName,
		Description:  m.ItemDescription,
		Price:        m.Price,
		Currency:     domain.Currency(m.Currency),
		RewardAmount: m.RewardAmount,
		RewardType:   m.RewardType,
		Active:       m.IsActive,
	}
}

type progressModel struct {
	BotID          int64 `gorm:"primaryKey;autoIncrement:false"`
	TelegramUserID int64 `gorm:"primaryKey;autoIncrement:false"`
	CoinBalance    int64
	Energy         int64
	TotalTaps      int64
	Level          int `gorm:"not null;default:1"`
	LastTapTime    *time.Time
}

func (progressModel) TableName() string { return "user_progress" }

type analyticsModel struct {
	ID             int64 `gorm:"primaryKey;autoIncrement"`
	BotID          int64 `gorm:"not null;index"`
	TelegramUserID *int64
	EventType      string `gorm:"not null"`
	EventData      *string
	CreatedAt      time.Time
}

func (analyticsModel) TableName() string { return "analytics" }

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MiningSettings configures the tap-to-earn economy of a single bot.
type MiningSettings struct {
	BotID              int64
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
	BackgroundImageURL string
}

// DefaultMiningSettings returns the settings a bot gets when none were saved.
func DefaultMiningSettings(botID int64) MiningSettings {
	return MiningSettings{
		BotID:              botID,
		CoinName:           "Coin",
		CoinSymbol:         "💎",
		InitialBalance:     0,
		TapReward:          1,
		MaxEnergy:          1000,
		EnergyRechargeRate: 1,
		PrimaryColor:       "#9333ea",
		SecondaryColor:     "#ec4899",
		TextColor:          "#ffffff",
		BackgroundColor:    "#1a1a2e",
	}
}

// UserProgress is the economy state of one end-user inside one bot.
type UserProgress struct {
	BotID       int64
	UserID      int64
	CoinBalance int64
	Energy      int64
	TotalTaps   int64
	Level       int
	LastTapTime *time.Time
}

// Currency identifies how a shop item is paid for.
type Currency string

const (
	CurrencyCoins Currency = "coins"
	CurrencyTON   Currency = "ton"
)

// ShopItem is an item sold in the mini-app shop.
type ShopItem struct {
	ID           int64
	BotID        int64
	Name         string
	Description  string
	Price        decimal.Decimal
	Currency     Currency
	RewardAmount *int64
	RewardType   string
	Active       bool
}

// Analytics event types.
const (
	EventMessage      = "message"
	EventCommand      = "command"
	EventTap          = "tap"
	EventShopPurchase = "shop_purchase"
	EventAIChat       = "ai_chat"
)

// AnalyticsEvent is a single usage record attributed to a bot and end-user.
type AnalyticsEvent struct {
	BotID     int64          `json:"bot_id"`
	UserID    int64          `json:"user_id"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

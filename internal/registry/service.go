// Package registry owns bot registrations and their command tables. The
// webhook runtime reads through it; the admin CLI writes through it.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xssnick/tonutils-go/address"

	"github.com/botforge/botforge/internal/botcache"
	"github.com/botforge/botforge/internal/domain"
	apperrors "github.com/botforge/botforge/internal/errors"
	"github.com/botforge/botforge/internal/repository"
)

// Store is the persistence the registry needs.
type Store interface {
	repository.BotRepository
	repository.CommandRepository
	repository.MiningSettingsRepository
	repository.ShopRepository
	repository.AnalyticsRepository
}

// Service provides read and write operations over bots.
type Service struct {
	store    Store
	cache    *botcache.Cache
	validate *validator.Validate
	log      *slog.Logger
}

// NewService constructs a Service. cache may be nil.
func NewService(store Store, cache *botcache.Cache, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		store:    store,
		cache:    cache,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
}

// GetBotConfig returns the bot and its command table, ordered by command name.
func (s *Service) GetBotConfig(ctx context.Context, botID int64) (*domain.BotConfig, error) {
	cached, err := s.cache.Get(ctx, botID)
	if err != nil {
		s.log.Warn("bot cache read failed", slog.Int64("bot_id", botID), slog.Any("error", err))
	}
	if cached != nil {
		return cached, nil
	}

	bot, err := s.GetBot(ctx, botID)
	if err != nil {
		return nil, err
	}

	commands, err := s.store.ListCommands(ctx, botID)
	if err != nil {
		s.logError("list_commands", botID, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	cfg := &domain.BotConfig{Bot: *bot, Commands: commands}
	if err := s.cache.Set(ctx, cfg); err != nil {
		s.log.Warn("bot cache write failed", slog.Int64("bot_id", botID), slog.Any("error", err))
	}

	return cfg, nil
}

// GetBot returns a bot or a BotNotFound error.
func (s *Service) GetBot(ctx context.Context, botID int64) (*domain.Bot, error) {
	bot, err := s.store.GetBot(ctx, botID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewBotNotFoundError(botID)
		}
		s.logError("get_bot", botID, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	return bot, nil
}

// ListBots returns all registered bots.
func (s *Service) ListBots(ctx context.Context) ([]domain.Bot, error) {
	bots, err := s.store.ListBots(ctx)
	if err != nil {
		s.logError("list_bots", 0, err)
		return nil, apperrors.NewDatabaseError(err)
	}
	return bots, nil
}

// CreateBot registers a bot.
func (s *Service) CreateBot(ctx context.Context, bot *domain.Bot) error {
	if bot == nil {
		return apperrors.NewValidationError("bot is required")
	}

	bot.Name = strings.TrimSpace(bot.Name)
	bot.Token = strings.TrimSpace(bot.Token)
	if bot.Name == "" || bot.Token == "" {
		return apperrors.NewValidationError("bot name and token are required")
	}
	if bot.TONWallet != "" {
		if err := ValidateTONAddress(bot.TONWallet); err != nil {
			return err
		}
	}

	if err := s.store.CreateBot(ctx, bot); err != nil {
		s.logError("create_bot", 0, err)
		return apperrors.NewDatabaseError(err)
	}

	s.log.Info("bot registered", slog.Int64("bot_id", bot.ID), slog.String("name", bot.Name))
	return nil
}

// AddCommand normalizes and stores a command. A second command with the same
// normalized name for the same bot is rejected.
func (s *Service) AddCommand(ctx context.Context, cmd *domain.Command) error {
	if err := s.prepareCommand(ctx, cmd); err != nil {
		return err
	}

	if err := s.store.CreateCommand(ctx, cmd); err != nil {
		return s.commandWriteError("create_command", cmd, err)
	}

	s.invalidate(ctx, cmd.BotID)
	return nil
}

// UpdateCommand rewrites an existing command.
func (s *Service) UpdateCommand(ctx context.Context, cmd *domain.Command) error {
	if err := s.prepareCommand(ctx, cmd); err != nil {
		return err
	}

	if err := s.store.UpdateCommand(ctx, cmd); err != nil {
		return s.commandWriteError("update_command", cmd, err)
	}

	s.invalidate(ctx, cmd.BotID)
	return nil
}

// DeleteCommand removes a command from a bot.
func (s *Service) DeleteCommand(ctx context.Context, botID, commandID int64) error {
	if err := s.store.DeleteCommand(ctx, botID, commandID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewValidationError(fmt.Sprintf("command %d not found", commandID))
		}
		s.logError("delete_command", botID, err)
		return apperrors.NewDatabaseError(err)
	}

	s.invalidate(ctx, botID)
	return nil
}

type settingsInput struct {
	CoinName           string `validate:"required"`
	CoinSymbol         string `validate:"required"`
	InitialBalance     int64  `validate:"min=0"`
	TapReward          int64  `validate:"min=1"`
	MaxEnergy          int64  `validate:"min=100"`
	EnergyRechargeRate int64  `validate:"min=0"`
}

// SaveMiningSettings validates and stores economy settings for a bot.
func (s *Service) SaveMiningSettings(ctx context.Context, settings *domain.MiningSettings) error {
	if settings == nil {
		return apperrors.NewValidationError("settings are required")
	}
	if _, err := s.GetBot(ctx, settings.BotID); err != nil {
		return err
	}

	err := s.validate.Struct(settingsInput{
		CoinName:           settings.CoinName,
		CoinSymbol:         settings.CoinSymbol,
		InitialBalance:     settings.InitialBalance,
		TapReward:          settings.TapReward,
		MaxEnergy:          settings.MaxEnergy,
		EnergyRechargeRate: settings.EnergyRechargeRate,
	})
	if err != nil {
		return validationError(err)
	}

	if err := s.store.SaveMiningSettings(ctx, settings); err != nil {
		s.logError("save_mining_settings", settings.BotID, err)
		return apperrors.NewDatabaseError(err)
	}

	return nil
}

// AddShopItem stores a new active shop item.
func (s *Service) AddShopItem(ctx context.Context, item *domain.ShopItem) error {
	if item == nil {
		return apperrors.NewValidationError("item is required")
	}
	if _, err := s.GetBot(ctx, item.BotID); err != nil {
		return err
	}

	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return apperrors.NewValidationError("item name is required")
	}
	if item.Price.IsNegative() {
		return apperrors.NewValidationError("item price must not be negative")
	}
	if item.Currency == "" {
		item.Currency = domain.CurrencyCoins
	}
	if item.Currency != domain.CurrencyCoins && item.Currency != domain.CurrencyTON {
		return apperrors.NewValidationError(fmt.Sprintf("unknown currency %q", item.Currency))
	}

	if err := s.store.CreateShopItem(ctx, item); err != nil {
		s.logError("create_shop_item", item.BotID, err)
		return apperrors.NewDatabaseError(err)
	}

	return nil
}

// DeactivateShopItem hides an item from the shop. Items are never deleted.
func (s *Service) DeactivateShopItem(ctx context.Context, botID, itemID int64) error {
	if err := s.store.DeactivateShopItem(ctx, botID, itemID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewItemNotFoundError(itemID)
		}
		s.logError("deactivate_shop_item", botID, err)
		return apperrors.NewDatabaseError(err)
	}

	return nil
}

// SetWebhook stores the webhook URL registered with Telegram.
func (s *Service) SetWebhook(ctx context.Context, botID int64, url string) error {
	return s.updateBot(ctx, botID, "set_webhook", func(b *domain.Bot) error {
		b.WebhookURL = url
		return nil
	})
}

// ToggleAI flips the AI fallback for a bot and returns the new state.
func (s *Service) ToggleAI(ctx context.Context, botID int64) (bool, error) {
	var enabled bool
	err := s.updateBot(ctx, botID, "toggle_ai", func(b *domain.Bot) error {
		b.AIEnabled = !b.AIEnabled
		enabled = b.AIEnabled
		return nil
	})
	return enabled, err
}

// SetGeminiKey stores the per-bot Gemini key. An empty key clears it.
func (s *Service) SetGeminiKey(ctx context.Context, botID int64, key string) error {
	return s.updateBot(ctx, botID, "set_gemini_key", func(b *domain.Bot) error {
		b.GeminiAPIKey = strings.TrimSpace(key)
		return nil
	})
}

// SetTONWallet stores a wallet address after checking its format.
func (s *Service) SetTONWallet(ctx context.Context, botID int64, wallet string) error {
	wallet = strings.TrimSpace(wallet)
	if err := ValidateTONAddress(wallet); err != nil {
		return err
	}

	return s.updateBot(ctx, botID, "set_ton_wallet", func(b *domain.Bot) error {
		b.TONWallet = wallet
		return nil
	})
}

// Stats returns analytics event counts by type.
func (s *Service) Stats(ctx context.Context, botID int64) (map[string]int64, error) {
	if _, err := s.GetBot(ctx, botID); err != nil {
		return nil, err
	}

	counts, err := s.store.CountEvents(ctx, botID)
	if err != nil {
		s.logError("count_events", botID, err)
		return nil, apperrors.NewDatabaseError(err)
	}
	return counts, nil
}

// ValidateTONAddress checks the user-friendly or raw form of a TON address.
// It never contacts the network.
func ValidateTONAddress(wallet string) error {
	if wallet == "" {
		return apperrors.NewValidationError("wallet address is required")
	}

	if _, err := address.ParseAddr(wallet); err != nil {
		if _, rawErr := address.ParseRawAddr(wallet); rawErr != nil {
			return apperrors.NewValidationError(fmt.Sprintf("invalid TON address: %v", err))
		}
	}

	return nil
}

func (s *Service) prepareCommand(ctx context.Context, cmd *domain.Command) error {
	if cmd == nil {
		return apperrors.NewValidationError("command is required")
	}
	if _, err := s.GetBot(ctx, cmd.BotID); err != nil {
		return err
	}

	cmd.Command = domain.NormalizeCommand(cmd.Command)
	cmd.ResponseContent = strings.TrimSpace(cmd.ResponseContent)
	cmd.URLLink = strings.TrimSpace(cmd.URLLink)
	cmd.ButtonText = strings.TrimSpace(cmd.ButtonText)

	if cmd.Command == "" || cmd.ResponseContent == "" {
		return apperrors.NewValidationError("command and response are required")
	}
	if cmd.ResponseType == "" {
		cmd.ResponseType = domain.ResponseText
	}
	if !cmd.ResponseType.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown response type %q", cmd.ResponseType))
	}
	if cmd.ResponseType == domain.ResponseURLButton && (cmd.URLLink == "" || cmd.ButtonText == "") {
		return apperrors.NewValidationError("url_button commands need a link and button text")
	}
	if cmd.URLLink != "" {
		cmd.URLLink = strings.ReplaceAll(cmd.URLLink, "BOT_ID", fmt.Sprintf("%d", cmd.BotID))
	}

	return nil
}

func (s *Service) commandWriteError(op string, cmd *domain.Command, err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewValidationError(fmt.Sprintf("command /%s already exists", cmd.Command))
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewValidationError(fmt.Sprintf("command %d not found", cmd.ID))
	default:
		s.logError(op, cmd.BotID, err)
		return apperrors.NewDatabaseError(err)
	}
}

func (s *Service) updateBot(ctx context.Context, botID int64, op string, mutate func(*domain.Bot) error) error {
	bot, err := s.GetBot(ctx, botID)
	if err != nil {
		return err
	}

	if err := mutate(bot); err != nil {
		return err
	}

	if err := s.store.UpdateBot(ctx, bot); err != nil {
		s.logError(op, botID, err)
		return apperrors.NewDatabaseError(err)
	}

	s.invalidate(ctx, botID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, botID int64) {
	if err := s.cache.Invalidate(ctx, botID); err != nil {
		s.log.Warn("bot cache invalidation failed", slog.Int64("bot_id", botID), slog.Any("error", err))
	}
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.NewValidationError(err.Error())
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
	}
	return apperrors.NewValidationError(strings.Join(parts, "; "))
}

func (s *Service) logError(operation string, botID int64, err error) {
	s.log.Error("registry operation failed",
		slog.String("operation", operation),
		slog.Int64("bot_id", botID),
		slog.Any("error", err),
	)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/botforge/botforge/internal/command"
	"github.com/botforge/botforge/internal/domain"
	"github.com/botforge/botforge/internal/economy"
	apperrors "github.com/botforge/botforge/internal/errors"
)

func addBot(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("add-bot")
	name := fs.String("name", "", "display name")
	token := fs.String("token", "", "Telegram bot token")
	username := fs.String("username", "", "Telegram username")
	description := fs.String("description", "", "description")
	if err := fs.Parse(args); err != nil {
		return err
	}

	bot := &domain.Bot{
		Name:        *name,
		Token:       *token,
		Username:    strings.TrimPrefix(*username, "@"),
		Description: *description,
	}
	if err := e.registry.CreateBot(ctx, bot); err != nil {
		return err
	}

	fmt.Fprintf(e.out, "bot %d created\n", bot.ID)
	return nil
}

func listBots(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("list-bots")
	if err := fs.Parse(args); err != nil {
		return err
	}

	bots, err := e.registry.ListBots(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tUSERNAME\tAI\tWEBHOOK")
	for _, b := range bots {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\n", b.ID, b.Name, b.Username, b.AIEnabled, b.WebhookURL)
	}
	return tw.Flush()
}

func addCommand(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("add-command")
	botID := fs.Int64("bot", 0, "bot id")
	name := fs.String("command", "", "command name, with or without the slash")
	kind := fs.String("type", string(domain.ResponseText), "response type: text, photo or url_button")
	content := fs.String("content", "", "reply text, or the image URL for photo")
	link := fs.String("url", "", "button link; "+command.BotIDPlaceholder+" is replaced with the bot id")
	button := fs.String("button", "", "button caption")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireBot(fs, *botID); err != nil {
		return err
	}

	cmd := &domain.Command{
		BotID:           *botID,
		Command:         *name,
		ResponseType:    domain.ResponseType(*kind),
		ResponseContent: *content,
		URLLink:         *link,
		ButtonText:      *button,
	}
	if err := e.registry.AddCommand(ctx, cmd); err != nil {
		return err
	}

	fmt.Fprintf(e.out, "command /%s added (id %d)\n", cmd.Command, cmd.ID)
	return nil
}

func deleteCommand(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("delete-command")
	botID := fs.Int64("bot", 0, "bot id")
	id := fs.Int64("id", 0, "command id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireBot(fs, *botID); err != nil {
		return err
	}

	if err := e.registry.DeleteCommand(ctx, *botID, *id); err != nil {
		return err
	}

	fmt.Fprintf(e.out, "command %d deleted\n", *id)
	return nil
}

func setMining(ctx context.Context, e *env, args []string) error {
	defaults := economy.DefaultsFromConfig(e.cfg.Economy)

	fs := newFlagSet("set-mining")
	botID := fs.Int64("bot", 0, "bot id")
	coinName := fs.String("coin-name", defaults.CoinName, "coin name")
	coinSymbol := fs.String("coin-symbol", defaults.CoinSymbol, "coin symbol")
	initial := fs.Int64("initial-balance", defaults.InitialBalance, "balance of a new player")
	reward := fs.Int64("tap-reward", defaults.TapReward, "coins per tap")
	maxEnergy := fs.Int64("max-energy", defaults.MaxEnergy, "energy cap")
	recharge := fs.Int64("recharge-rate", defaults.EnergyRechargeRate, "energy regained per second")
	primary := fs.String("primary-color", defaults.PrimaryColor, "primary color")
	secondary := fs.String("secondary-color", defaults.SecondaryColor, "secondary color")
	text := fs.String("text-color", defaults.TextColor, "text color")
	background := fs.String("background-color", defaults.BackgroundColor, "background color")
	backgroundImage := fs.String("background-image", "", "background image URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireBot(fs, *botID); err != nil {
		return err
	}

	settings := &domain.MiningSettings{
		BotID:              *botID,
		CoinName:           *coinName,
		CoinSymbol:         *coinSymbol,
		InitialBalance:     *initial,
		TapReward:          *reward,
		MaxEnergy:          *maxEnergy,
		EnergyRechargeRate: *recharge,
		PrimaryColor:       *primary,
		SecondaryColor:     *secondary,
		TextColor:          *text,
		BackgroundColor:    *background,
		BackgroundImageURL: *backgroundImage,
	}
	if err := e.registry.SaveMiningSettings(ctx, settings); err != nil {
		return err
	}

	fmt.Fprintf(e.out, "mining settings saved for bot %d\n", *botID)
	return nil
}

func addItem(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("add-item")
	botID := fs.Int64("bot", 0, "bot id")
	name := fs.String("name", "", "item name")
	description := fs.String("description", "", "item description")
	price := fs.String("price", "0", "price")
	currency := fs.String("currency", string(domain.CurrencyCoins), "coins or ton")
	rewardAmount := fs.Int64("reward-amount", 0, "reward granted on purchase")
	rewardType := fs.String("reward-type", "", "reward kind")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireBot(fs, *botID); err != nil {
		return err
	}

	amount, err := decimal.NewFromString(*price)
	if err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("invalid price %q", *price))
	}

	item := &domain.ShopItem{
		BotID:       *botID,
		Name:        *name,
		Description: *description,
		Price:       amount,
		Currency:    domain.Currency(*currency),
		RewardType:  *rewardType,
	}
	if fs.Changed("reward-amount") {
		item.RewardAmount = rewardAmount
	}
	if err := e.registry.AddShopItem(ctx, item); err != nil {
		return err
	}

	fmt.Fprintf(e.out, "item %d added\n", item.ID)
	return nil
}

func removeItem(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("remove-item")
	botID := fs.Int64("bot", 0, "bot id")
	id := fs.Int64("id", 0, "item id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireBot(fs, *botID); err != nil {
		return err
	}

	if err := e.registry.DeactivateShopItem(ctx, *botID, *id); err != nil {
		return err
	}

	fmt.Fprintf(e.out, "item %d deactivated\n", *id)
	return nil
}

func toggleAI(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("toggle-ai")
	botID := fs.Int64("bot", 0, "bot id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireBot(fs, *botID); err != nil {
		return err
	}

	enabled, err := e.registry.ToggleAI(ctx, *botID)
	if err != nil {
		return err
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Fprintf(e.out, "AI %s for bot %d\n", state, *botID)
	return nil
}

func setGeminiKey(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("set-gemini-key")
	botID := fs.Int64("bot", 0, "bot id")
	key := fs.String("key", "", "Gemini API key; empty clears it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireBot(fs, *botID); err != nil {
		return err
	}

	if err := e.registry.SetGeminiKey(ctx, *botID, strings.TrimSpace(*key)); err != nil {
		return err
	}

	fmt.Fprintln(e.out, "gemini key updated")
	return nil
}

func setTONWallet(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("set-ton-wallet")
	botID := fs.Int64("bot", 0, "bot id")
	wallet := fs.String("wallet", "", "TON wallet address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireBot(fs, *botID); err != nil {
		return err
	}

	if err := e.registry.SetTONWallet(ctx, *botID, *wallet); err != nil {
		return err
	}

	fmt.Fprintln(e.out, "TON wallet updated")
	return nil
}

func setWebhook(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("set-webhook")
	botID := fs.Int64("bot", 0, "bot id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireBot(fs, *botID); err != nil {
		return err
	}
	if e.cfg.Server.PublicURL == "" {
		return apperrors.NewValidationError("server.public_url must be set to register a webhook")
	}

	bot, err := e.registry.GetBot(ctx, *botID)
	if err != nil {
		return err
	}

	url := command.NewLinkBuilder(e.cfg.Server.PublicURL, e.cfg.MiniApp.PathSegment).WebhookURL(bot.ID)

	client, err := webhookClient(e.cfg.Telegram, bot.Token, e.log)
	if err != nil {
		return err
	}
	if err := apperrors.WithRetry(ctx, func() error { return client.SetWebhook(ctx, url) }); err != nil {
		return err
	}

	if err := e.registry.SetWebhook(ctx, bot.ID, url); err != nil {
		return err
	}

	e.log.Info("webhook registered", slog.Int64("bot_id", bot.ID), slog.String("url", url))
	fmt.Fprintf(e.out, "webhook set to %s\n", url)
	return nil
}

func stats(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("stats")
	botID := fs.Int64("bot", 0, "bot id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireBot(fs, *botID); err != nil {
		return err
	}

	counts, err := e.registry.Stats(ctx, *botID)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EVENT\tCOUNT")
	for _, k := range sortedKeys(counts) {
		fmt.Fprintf(tw, "%s\t%d\n", k, counts[k])
	}
	return tw.Flush()
}

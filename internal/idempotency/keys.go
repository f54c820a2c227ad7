package idempotency

import "fmt"

// UpdateKey identifies one Telegram update delivered to one bot.
func UpdateKey(botID int64, updateID int) string {
	return fmt.Sprintf("update:%d:%d", botID, updateID)
}

func recordKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}

func lockKey(key string) string {
	return fmt.Sprintf("idempotency:%s:lock", key)
}

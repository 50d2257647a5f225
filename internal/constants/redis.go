package constants

// Redis 队列名称
const (
	// RedisQueueFeedCommand Go → 行情网关的指令队列
	RedisQueueFeedCommand = "feed_cmd_queue"

	// RedisQueueNotification 对外通知队列（fill/monitoring 事件，fire-and-forget）
	RedisQueueNotification = "bot_notification_queue"
)

// Redis Pub/Sub 频道
const (
	// RedisPubSubMarketPrefix 行情数据频道前缀
	RedisPubSubMarketPrefix = "market."
)

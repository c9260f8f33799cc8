package common

const (
	RedisLockPrefix       = "surge.lock."
	RedisLastPricePrefix  = "surge.price."
	RedisLockSignalScan   = RedisLockPrefix + "signal_scan"
	RedisLockPositionScan = RedisLockPrefix + "position_monitor"

	QuoteAsset = "USDT"
)

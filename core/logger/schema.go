package logger

import "strings"

var allowedLevels = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

var allowedStatus = map[string]struct{}{
	"ok":           {},
	"fail":         {},
	"skip":         {},
	"retry":        {},
	"stale":        {},
	"duplicate":    {},
	"rate_limited": {},
}

func normalizeLevel(level string) string {
	if mapped, ok := allowedLevels[strings.ToLower(level)]; ok {
		return mapped
	}
	if level == "" {
		return "INFO"
	}
	return strings.ToUpper(level)
}

// normalizeStatus lowercases known statuses and keeps unknown ones verbatim.
func normalizeStatus(status string) string {
	lower := strings.ToLower(strings.TrimSpace(status))
	if _, ok := allowedStatus[lower]; ok {
		return lower
	}
	return status
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"method",
	"path",
	"http_code",
	"duration_ms",
	"state",
	"attempt",
	"question_id",
	"answer_id",
	"outcome",
	"score",
	"badge",
	"request_id",
	"gen_status",
	"source",
	"messages",
	"cache",
	"payload",
	"mode",
	"listen",
	"public_url",
	"driver",
	"db",
	"err",
	"err_kind",
	"retryable",
	"attempts",
}

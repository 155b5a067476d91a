package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

// Document collections.
const (
	CollectionUsers        = "users"
	CollectionUserProgress = "userProgress"
	CollectionGameSessions = "gameSessions"
	CollectionUserEmails   = "userEmails"
)

// Gin context keys.
const (
	ContextUserKey = "user"
)

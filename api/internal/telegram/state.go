package telegram

import "sync"

// chatTopics remembers the last classified topic per chat for /quiz.
type chatTopics struct {
	m sync.Map // chatID -> string
}

func (c *chatTopics) set(chatID int64, topic string) { c.m.Store(chatID, topic) }

func (c *chatTopics) get(chatID int64) (string, bool) {
	if v, ok := c.m.Load(chatID); ok {
		if s, _ := v.(string); s != "" {
			return s, true
		}
	}
	return "", false
}

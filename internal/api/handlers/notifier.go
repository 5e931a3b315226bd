package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Message levels
const (
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// FlashCookieName is the cookie carrying pending user messages
const FlashCookieName = "onboard_flash"

// Message is a user visible notification
type Message struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// Notifier delivers user visible messages at wizard transitions
type Notifier interface {
	Notify(c *gin.Context, level, text string)
	Pending(c *gin.Context) []Message
}

// FlashNotifier keeps messages in a short lived cookie until the next
// landing page read
type FlashNotifier struct {
	logger *zap.Logger
	maxAge int
	secure bool
}

// NewFlashNotifier creates a cookie backed notifier
func NewFlashNotifier(logger *zap.Logger, secure bool) *FlashNotifier {
	return &FlashNotifier{
		logger: logger,
		maxAge: 300,
		secure: secure,
	}
}

// Notify queues a message for the next Pending call
func (n *FlashNotifier) Notify(c *gin.Context, level, text string) {
	messages := append(n.read(c), Message{Level: level, Text: text})

	raw, err := json.Marshal(messages)
	if err != nil {
		n.logger.Error("Failed to encode flash messages", zap.Error(err))
		return
	}

	n.logger.Info("User notification",
		zap.String("level", level),
		zap.String("text", text),
		zap.String("ip", c.ClientIP()),
	)

	value := base64.RawURLEncoding.EncodeToString(raw)
	// Keep the value visible to later reads within this request
	c.Request.AddCookie(&http.Cookie{Name: FlashCookieName, Value: value})
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(FlashCookieName, value, n.maxAge, "/", "", n.secure, true)
}

// Pending returns and clears queued messages
func (n *FlashNotifier) Pending(c *gin.Context) []Message {
	messages := n.read(c)
	if len(messages) > 0 {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(FlashCookieName, "", -1, "/", "", n.secure, true)
	}
	return messages
}

func (n *FlashNotifier) read(c *gin.Context) []Message {
	var value string
	// The newest cookie wins when Notify ran earlier in this request
	for _, cookie := range c.Request.Cookies() {
		if cookie.Name == FlashCookieName {
			value = cookie.Value
		}
	}
	if value == "" {
		return nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		n.logger.Debug("Discarding malformed flash cookie", zap.Error(err))
		return nil
	}

	var messages []Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		n.logger.Debug("Discarding malformed flash cookie", zap.Error(err))
		return nil
	}
	return messages
}

// Package gate filters inbound messages before they reach the
// conversation flow. It drops duplicate deliveries, rapid-fire repeats
// inside the per-user cooldown, and echoes of the bot's own outbound
// messages.
package gate

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unravelhq/tripflow/internal/clock"
)

// Reason explains why a message was dropped. Admitted messages carry
// ReasonAdmitted.
type Reason string

const (
	ReasonAdmitted  Reason = "admitted"
	ReasonDuplicate Reason = "duplicate"
	ReasonCooldown  Reason = "cooldown"
	ReasonSelfEcho  Reason = "self_echo"
	ReasonEmpty     Reason = "empty"
)

// echoFingerprints are lowercase substrings that only appear in the bot's
// own outbound messages. A matching inbound message is the transport
// echoing us back and must not be processed.
var echoFingerprints = []string{
	"hello! welcome to unravel experience",
	"if you're ready to proceed with booking",
	"please reply \"ready for this package\"",
	"great! i'd be happy to help you book",
	"please provide your full name",
	"how many travelers will be joining",
	"what's your preferred travel date",
	"any special requirements or preferences",
	"*booking summary*",
	"all details collected! reply with \"finalize\"",
}

// Config holds gate settings.
type Config struct {
	// Cooldown is the minimum gap between admitted messages per user.
	Cooldown time.Duration
	// DedupCacheSize bounds the recently-seen message id set.
	DedupCacheSize int
}

// Gate is safe for concurrent use.
type Gate struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time

	// seen and order form a bounded FIFO set of recent message ids.
	seen  map[string]struct{}
	order []string

	cfg    Config
	clk    clock.Clock
	logger *zap.Logger
}

// New creates a gate with the given settings.
func New(cfg Config, clk clock.Clock, logger *zap.Logger) *Gate {
	if cfg.DedupCacheSize <= 0 {
		cfg.DedupCacheSize = 1000
	}
	return &Gate{
		lastSeen: make(map[string]time.Time),
		seen:     make(map[string]struct{}),
		cfg:      cfg,
		clk:      clk,
		logger:   logger,
	}
}

// Admit decides whether an inbound message should be processed. When
// messageID is empty a fingerprint is derived from the sender, arrival
// time, and text so transports without stable ids still dedup.
func (g *Gate) Admit(userID, messageID, text string) (bool, Reason) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false, ReasonEmpty
	}

	if isSelfEcho(trimmed) {
		g.logger.Debug("dropping self echo", zap.String("user_id", userID))
		return false, ReasonSelfEcho
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clk.Now()

	id := messageID
	if id == "" {
		id = deriveMessageID(userID, now, trimmed)
	}
	if _, dup := g.seen[id]; dup {
		g.logger.Debug("dropping duplicate delivery",
			zap.String("user_id", userID),
			zap.String("message_id", id),
		)
		return false, ReasonDuplicate
	}

	if last, ok := g.lastSeen[userID]; ok && now.Sub(last) < g.cfg.Cooldown {
		g.logger.Debug("dropping message inside cooldown",
			zap.String("user_id", userID),
			zap.Duration("since_last", now.Sub(last)),
		)
		return false, ReasonCooldown
	}

	g.remember(id)
	g.lastSeen[userID] = now
	return true, ReasonAdmitted
}

// remember records a message id, evicting the oldest when full.
func (g *Gate) remember(id string) {
	g.seen[id] = struct{}{}
	g.order = append(g.order, id)
	if len(g.order) > g.cfg.DedupCacheSize {
		oldest := g.order[0]
		g.order = g.order[1:]
		delete(g.seen, oldest)
	}
}

// isSelfEcho reports whether the text matches a known outbound fingerprint.
func isSelfEcho(text string) bool {
	lower := strings.ToLower(text)
	for _, fp := range echoFingerprints {
		if strings.Contains(lower, fp) {
			return true
		}
	}
	return false
}

// deriveMessageID fingerprints a message lacking a transport id. The text
// prefix keeps the hash cheap on long messages.
func deriveMessageID(userID string, ts time.Time, text string) string {
	prefix := text
	if len(prefix) > 64 {
		prefix = prefix[:64]
	}
	h := sha256.Sum256([]byte(userID + "|" + ts.Format(time.RFC3339) + "|" + prefix))
	return hex.EncodeToString(h[:16])
}

package dispatcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/angosms/sms-gateway/internal/config"
	"github.com/angosms/sms-gateway/internal/model"
)

// DefaultCountry keys the global default pair in a RouteTable.
const DefaultCountry = "*"

// RuleSource loads routing rules. Implemented by repository.RoutingRepository.
type RuleSource interface {
	ListRoutingRules(ctx context.Context) ([]model.RoutingRule, error)
}

// RouteTable caches the routing_rules table. The table is the only source of
// routing decisions; the configured default pair covers countries without a
// row.
type RouteTable struct {
	src RuleSource
	def model.RoutingRule
	ttl time.Duration
	log *zap.Logger
	now func() time.Time

	mu       sync.RWMutex
	rules    map[string]model.RoutingRule
	loadedAt time.Time
}

func NewRouteTable(src RuleSource, def config.RoutePair, ttl time.Duration, log *zap.Logger) *RouteTable {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RouteTable{
		src: src,
		def: model.RoutingRule{CountryCode: DefaultCountry, PrimaryGateway: def.Primary, FallbackGateway: def.Fallback},
		ttl: ttl,
		log: log,
		now: time.Now,
	}
}

// Lookup returns the rule for country, then the stored "*" rule, then the
// configured default pair. A failed reload keeps serving the previously
// loaded rules.
func (t *RouteTable) Lookup(ctx context.Context, country string) model.RoutingRule {
	rules := t.load(ctx)
	for _, key := range []string{country, DefaultCountry} {
		if r, ok := rules[key]; ok && len(r.Ordered()) > 0 {
			return r
		}
	}
	return t.def
}

// Invalidate forces a reload on the next Lookup.
func (t *RouteTable) Invalidate() {
	t.mu.Lock()
	t.loadedAt = time.Time{}
	t.mu.Unlock()
}

func (t *RouteTable) load(ctx context.Context) map[string]model.RoutingRule {
	t.mu.RLock()
	fresh := !t.loadedAt.IsZero() && t.now().Sub(t.loadedAt) < t.ttl
	rules := t.rules
	t.mu.RUnlock()
	if fresh || t.src == nil {
		return rules
	}

	list, err := t.src.ListRoutingRules(ctx)
	if err != nil {
		t.log.Warn("routing rules reload failed", zap.Error(err))
		return rules
	}
	m := make(map[string]model.RoutingRule, len(list))
	for _, r := range list {
		m[r.CountryCode] = r
	}

	t.mu.Lock()
	t.rules = m
	t.loadedAt = t.now()
	t.mu.Unlock()
	return m
}

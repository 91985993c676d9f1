package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/angosms/sms-gateway/internal/config"
	"github.com/angosms/sms-gateway/internal/model"
)

func TestRouteTableLookup(t *testing.T) {
	src := &staticRules{rules: []model.RoutingRule{aoRule, {CountryCode: "PT"}}}
	rt := NewRouteTable(src, config.RoutePair{Primary: "routee", Fallback: "bulksms"}, time.Minute, nil)
	ctx := context.Background()

	assert.Equal(t, []string{"bulkgate", "bulksms"}, rt.Lookup(ctx, "AO").Ordered())
	assert.Equal(t, []string{"routee", "bulksms"}, rt.Lookup(ctx, "BR").Ordered())
	assert.Equal(t, []string{"routee", "bulksms"}, rt.Lookup(ctx, "PT").Ordered(), "empty rule uses default")
	assert.Equal(t, 1, src.calls)
}

func TestRouteTableTTLAndInvalidate(t *testing.T) {
	src := &staticRules{rules: []model.RoutingRule{aoRule}}
	rt := NewRouteTable(src, config.RoutePair{Primary: "routee"}, time.Minute, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rt.now = func() time.Time { return now }
	ctx := context.Background()

	rt.Lookup(ctx, "AO")
	rt.Lookup(ctx, "AO")
	assert.Equal(t, 1, src.calls)

	now = now.Add(2 * time.Minute)
	rt.Lookup(ctx, "AO")
	assert.Equal(t, 2, src.calls)

	rt.Invalidate()
	rt.Lookup(ctx, "AO")
	assert.Equal(t, 3, src.calls)
}

func TestRouteTableKeepsRulesOnReloadError(t *testing.T) {
	src := &staticRules{rules: []model.RoutingRule{aoRule}}
	rt := NewRouteTable(src, config.RoutePair{Primary: "routee"}, time.Minute, nil)
	ctx := context.Background()
	assert.Equal(t, "bulkgate", rt.Lookup(ctx, "AO").PrimaryGateway)

	src.err = errors.New("db down")
	rt.Invalidate()
	assert.Equal(t, "bulkgate", rt.Lookup(ctx, "AO").PrimaryGateway)
}

func TestRouteTableStoredDefaultRow(t *testing.T) {
	src := &staticRules{rules: []model.RoutingRule{
		aoRule,
		{CountryCode: DefaultCountry, PrimaryGateway: "bulksms", FallbackGateway: "routee"},
	}}
	rt := NewRouteTable(src, config.RoutePair{Primary: "routee", Fallback: "bulksms"}, time.Minute, nil)
	ctx := context.Background()

	assert.Equal(t, []string{"bulkgate", "bulksms"}, rt.Lookup(ctx, "AO").Ordered())
	assert.Equal(t, []string{"bulksms", "routee"}, rt.Lookup(ctx, model.CountryUnknown).Ordered())
}

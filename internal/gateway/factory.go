package gateway

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/angosms/sms-gateway/internal/config"
)

const (
	KindBulkSMS  = "bulksms"
	KindBulkGate = "bulkgate"
	KindRoutee   = "routee"
	KindHTTP     = "http"
)

// NewProvider builds the adapter for one provider config. It returns false
// when the provider is disabled or lacks credentials.
func NewProvider(pc config.ProviderConfig) (Provider, bool, error) {
	if !pc.Enabled {
		return nil, false, nil
	}
	timeout := time.Duration(pc.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	switch strings.ToLower(pc.Kind) {
	case KindBulkSMS:
		if pc.Username == "" || pc.Password == "" {
			return nil, false, nil
		}
		return NewBulkSMS(pc.Name, pc.BaseURL, pc.Username, pc.Password, timeout), true, nil
	case KindBulkGate:
		if pc.AppID == "" || pc.Token == "" {
			return nil, false, nil
		}
		return NewBulkGate(pc.Name, pc.BaseURL, pc.AppID, pc.Token, timeout), true, nil
	case KindRoutee:
		if pc.Username == "" || pc.Password == "" {
			return nil, false, nil
		}
		return NewRoutee(pc.Name, pc.BaseURL, pc.AuthURL, pc.Username, pc.Password, timeout), true, nil
	case KindHTTP:
		if strings.TrimSpace(pc.BaseURL) == "" {
			return nil, false, nil
		}
		return NewHTTPProvider(pc.Name, pc.BaseURL, pc.SendPath, pc.BalancePath, pc.Token, timeout), true, nil
	default:
		return nil, false, fmt.Errorf("gateway %q: unknown kind %q", pc.Name, pc.Kind)
	}
}

// BuildHandles creates handles for every usable provider in cfg.
func BuildHandles(cfg config.GatewaysConfig, maxWait time.Duration, log *zap.Logger) (map[string]*Handle, error) {
	if log == nil {
		log = zap.NewNop()
	}
	out := make(map[string]*Handle, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		p, ok, err := NewProvider(pc)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Info("gateway not configured", zap.String("gateway", pc.Name), zap.Bool("enabled", pc.Enabled))
			continue
		}
		br := NewBreaker(pc.Name, pc.Breaker.FailThreshold, time.Duration(pc.Breaker.OpenForMs)*time.Millisecond, log)
		out[pc.Name] = NewHandle(p, pc.RPS, pc.Burst, br, maxWait)
	}
	return out, nil
}

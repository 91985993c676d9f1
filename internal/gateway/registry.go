package gateway

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/angosms/sms-gateway/internal/metrics"
	"github.com/angosms/sms-gateway/internal/model"
)

var (
	ErrUnknownGateway    = errors.New("unknown gateway")
	ErrGatewayInactive   = errors.New("gateway is inactive")
	ErrPrimaryDeactivate = errors.New("cannot deactivate the primary gateway")
)

// Store persists gateway rows. Implemented by repository.GatewaysRepository.
type Store interface {
	ListGateways(ctx context.Context) ([]model.Gateway, error)
	SaveProbe(ctx context.Context, p model.GatewayProbe) error
	SetPrimary(ctx context.Context, name string) error
	SetActive(ctx context.Context, name string, active bool) error
}

type ProbeResult struct {
	Gateway        string              `json:"gateway"`
	Available      bool                `json:"available"`
	Status         model.GatewayStatus `json:"status"`
	Balance        *float64            `json:"balance,omitempty"`
	ResponseTimeMs int64               `json:"response_time_ms"`
	Error          string              `json:"error,omitempty"`
	CheckedAt      time.Time           `json:"checked_at"`
}

type Options struct {
	ProbeTimeout time.Duration // default 8s
	TTL          time.Duration // row cache lifetime, default 30s
	Log          *zap.Logger
}

// Registry joins persisted gateway rows (flags, status) with the configured
// provider handles.
type Registry struct {
	store        Store
	handles      map[string]*Handle
	probeTimeout time.Duration
	ttl          time.Duration
	log          *zap.Logger
	now          func() time.Time

	mu       sync.RWMutex
	rows     map[string]model.Gateway // replaced, never mutated in place
	loadedAt time.Time
}

func NewRegistry(store Store, handles map[string]*Handle, opts Options) *Registry {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 8 * time.Second
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if handles == nil {
		handles = map[string]*Handle{}
	}
	return &Registry{
		store:        store,
		handles:      handles,
		probeTimeout: opts.ProbeTimeout,
		ttl:          opts.TTL,
		log:          opts.Log,
		now:          time.Now,
		rows:         map[string]model.Gateway{},
	}
}

// Refresh reloads gateway rows from the store.
func (r *Registry) Refresh(ctx context.Context) error {
	rows, err := r.store.ListGateways(ctx)
	if err != nil {
		return err
	}
	m := make(map[string]model.Gateway, len(rows))
	for _, g := range rows {
		_, g.Configured = r.handles[g.Name]
		m[g.Name] = g
	}

	r.mu.Lock()
	r.rows = m
	r.loadedAt = r.now()
	r.mu.Unlock()
	return nil
}

func (r *Registry) snapshot(ctx context.Context) map[string]model.Gateway {
	r.mu.RLock()
	fresh := !r.loadedAt.IsZero() && r.now().Sub(r.loadedAt) < r.ttl
	rows := r.rows
	r.mu.RUnlock()
	if fresh {
		return rows
	}

	if err := r.Refresh(ctx); err != nil {
		r.log.Warn("gateway refresh failed, using cached rows", zap.Error(err))
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rows
}

// List returns every gateway row, refreshed from the store.
func (r *Registry) List(ctx context.Context) ([]model.Gateway, error) {
	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]model.Gateway, 0, len(r.rows))
	for _, g := range r.rows {
		out = append(out, g)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListActive returns gateways that are both active and configured.
func (r *Registry) ListActive(ctx context.Context) ([]model.Gateway, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, g := range all {
		if g.IsActive && g.Configured {
			out = append(out, g)
		}
	}
	return out, nil
}

// Active returns the sender for name when the gateway is active and
// configured.
func (r *Registry) Active(ctx context.Context, name string) (Sender, bool) {
	row, ok := r.snapshot(ctx)[name]
	if !ok || !row.IsActive {
		return nil, false
	}
	h, ok := r.handles[name]
	if !ok {
		return nil, false
	}
	return h, true
}

// Probe checks one gateway's reachability and balance. Provider failures are
// reported in the result with status error; only unknown names are errors.
func (r *Registry) Probe(ctx context.Context, name string) (ProbeResult, error) {
	_, known := r.snapshot(ctx)[name]
	h, configured := r.handles[name]
	if !known && !configured {
		return ProbeResult{}, ErrUnknownGateway
	}

	res := ProbeResult{Gateway: name, CheckedAt: r.now().UTC()}
	if !configured {
		res.Status = model.GatewayDisconnected
		res.Error = "gateway not configured"
	} else {
		pctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
		start := r.now()
		bal, err := h.provider.Balance(pctx)
		cancel()
		res.ResponseTimeMs = r.now().Sub(start).Milliseconds()
		if err != nil {
			res.Status = model.GatewayError
			res.Error = err.Error()
		} else {
			res.Available = true
			res.Status = model.GatewayConnected
			res.Balance = bal
		}
	}

	if res.Available {
		metrics.GatewayUp.WithLabelValues(name).Set(1)
		if res.Balance != nil {
			metrics.GatewayBalance.WithLabelValues(name).Set(*res.Balance)
		}
	} else {
		metrics.GatewayUp.WithLabelValues(name).Set(0)
	}

	probe := model.GatewayProbe{
		Name:           name,
		Status:         res.Status,
		Balance:        res.Balance,
		ResponseTimeMs: res.ResponseTimeMs,
		Error:          res.Error,
		CheckedAt:      res.CheckedAt,
	}
	if known {
		if err := r.store.SaveProbe(ctx, probe); err != nil {
			r.log.Warn("persist probe failed", zap.String("gateway", name), zap.Error(err))
		}
		r.applyProbe(probe)
	}
	return res, nil
}

func (r *Registry) applyProbe(p model.GatewayProbe) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[p.Name]
	if !ok {
		return
	}
	m := make(map[string]model.Gateway, len(r.rows))
	for k, v := range r.rows {
		m[k] = v
	}
	row.Status = p.Status
	row.Balance = p.Balance
	ms := p.ResponseTimeMs
	row.ResponseTimeMs = &ms
	checked := p.CheckedAt
	row.CheckedAt = &checked
	if p.Error != "" {
		e := p.Error
		row.LastError = &e
	} else {
		row.LastError = nil
	}
	m[p.Name] = row
	r.rows = m
}

// ProbeAll probes every known gateway concurrently.
func (r *Registry) ProbeAll(ctx context.Context) []ProbeResult {
	names := make(map[string]struct{})
	for n := range r.snapshot(ctx) {
		names[n] = struct{}{}
	}
	for n := range r.handles {
		names[n] = struct{}{}
	}

	var (
		mu  sync.Mutex
		out = make([]ProbeResult, 0, len(names))
		wg  conc.WaitGroup
	)
	for n := range names {
		name := n
		wg.Go(func() {
			res, err := r.Probe(ctx, name)
			if err != nil {
				return
			}
			mu.Lock()
			out = append(out, res)
			mu.Unlock()
		})
	}
	wg.Wait()

	sort.Slice(out, func(i, j int) bool { return out[i].Gateway < out[j].Gateway })
	return out
}

// SetPrimary makes name the only primary gateway.
func (r *Registry) SetPrimary(ctx context.Context, name string) error {
	if err := r.Refresh(ctx); err != nil {
		return err
	}
	r.mu.RLock()
	row, ok := r.rows[name]
	r.mu.RUnlock()
	if !ok {
		return ErrUnknownGateway
	}
	if !row.IsActive {
		return ErrGatewayInactive
	}
	if err := r.store.SetPrimary(ctx, name); err != nil {
		return err
	}
	r.log.Info("primary gateway changed", zap.String("gateway", name))
	return r.Refresh(ctx)
}

// SetActive activates or deactivates a gateway. Gateways are never deleted.
func (r *Registry) SetActive(ctx context.Context, name string, active bool) error {
	if err := r.Refresh(ctx); err != nil {
		return err
	}
	r.mu.RLock()
	row, ok := r.rows[name]
	r.mu.RUnlock()
	if !ok {
		return ErrUnknownGateway
	}
	if !active && row.IsPrimary {
		return ErrPrimaryDeactivate
	}
	if err := r.store.SetActive(ctx, name, active); err != nil {
		return err
	}
	r.log.Info("gateway active flag changed", zap.String("gateway", name), zap.Bool("active", active))
	return r.Refresh(ctx)
}

// RunProber probes all gateways every interval until ctx is done.
func (r *Registry) RunProber(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			results := r.ProbeAll(ctx)
			up := 0
			for _, res := range results {
				if res.Available {
					up++
				}
			}
			r.log.Info("gateway probe round", zap.Int("gateways", len(results)), zap.Int("available", up))
		}
	}
}

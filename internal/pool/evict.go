package pool

import (
	"context"
	"time"
)

func (p *Pool) runEvictor() {
	defer close(p.evictorDone)

	ticker := time.NewTicker(p.cfg.EvictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.closeCtx.Done():
			return
		case <-ticker.C:
			p.evict(time.Now())
			p.ensureMinIdle(p.closeCtx)
			if !p.connected.Load() {
				p.reconnect()
			}
		}
	}
}

// evict examines up to TestsPerEviction of the oldest idle connections.
// Those idle longer than MinEvictableIdle are closed; with TestWhileIdle the
// rest are pinged and closed on failure.
func (p *Pool) evict(now time.Time) {
	p.mu.Lock()
	if p.closed || len(p.idle) == 0 {
		p.mu.Unlock()
		return
	}
	n := p.cfg.TestsPerEviction
	if n <= 0 || n > len(p.idle) {
		n = len(p.idle)
	}
	batch := make([]*Conn, n)
	copy(batch, p.idle[:n])
	p.idle = append(p.idle[:0], p.idle[n:]...)
	p.mu.Unlock()

	keep := batch[:0]
	for _, c := range batch {
		if p.cfg.MinEvictableIdle > 0 && now.Sub(c.lastUsed) >= p.cfg.MinEvictableIdle {
			p.log.Debug("evicting idle connection", "idle_for", now.Sub(c.lastUsed).String())
			_ = c.Close()
			p.evictions.Add(1)
			p.metrics.ObserveEviction()
			continue
		}
		if p.cfg.TestWhileIdle {
			ctx, cancel := context.WithTimeout(p.closeCtx, p.checkTimeout())
			ok := c.ping(ctx)
			cancel()
			p.metrics.ObserveHealthCheck("idle", ok)
			if !ok {
				_ = c.Close()
				p.setConnected(false, errBroken)
				continue
			}
		}
		keep = append(keep, c)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		for _, c := range keep {
			_ = c.Close()
		}
		return
	}
	// Survivors go back to the front: they are still the oldest.
	p.idle = append(keep, p.idle...)
}

// ensureMinIdle dials until MinIdle idle connections exist, as long as that
// stays within MaxTotal.
func (p *Pool) ensureMinIdle(ctx context.Context) {
	for {
		p.mu.Lock()
		if p.closed ||
			len(p.idle)+p.pending >= p.cfg.MinIdle ||
			p.active+len(p.idle)+p.pending >= p.cfg.MaxTotal {
			p.mu.Unlock()
			return
		}
		p.pending++
		p.mu.Unlock()

		c, err := p.open(ctx)
		p.metrics.ObserveDial(err)
		p.dials.Add(1)

		p.mu.Lock()
		p.pending--
		if err != nil {
			p.mu.Unlock()
			p.setConnected(false, err)
			return
		}
		if p.closed {
			p.mu.Unlock()
			_ = c.Close()
			return
		}
		p.idle = append(p.idle, c)
		p.mu.Unlock()
		p.setConnected(true, nil)
	}
}

// Prefill opens connections until MinIdle is reached.
func (p *Pool) Prefill(ctx context.Context) {
	p.ensureMinIdle(ctx)
}

// reconnect dials one connection while the store is considered unreachable so
// that IsConnected recovers even when nothing else is dialing.
func (p *Pool) reconnect() {
	ctx, cancel := context.WithTimeout(p.closeCtx, p.checkTimeout())
	defer cancel()

	c, err := p.open(ctx)
	p.metrics.ObserveDial(err)
	p.dials.Add(1)
	if err != nil {
		p.log.Debug("store reconnect failed", "error", err)
		return
	}
	if !c.ping(ctx) {
		_ = c.Close()
		return
	}
	p.setConnected(true, nil)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || len(p.idle) >= p.cfg.MaxIdle || p.active+len(p.idle)+p.pending >= p.cfg.MaxTotal {
		_ = c.Close()
		return
	}
	p.idle = append(p.idle, c)
}

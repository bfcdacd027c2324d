// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"
	"sync"
	"time"

	"bandstretch/internal/config"
	applog "bandstretch/internal/log"
)

// Publisher polls an EnergySource at a fixed interval and fans each frame
// out to every registered transport. It runs in its own goroutine managed
// by Start and Stop.
type Publisher struct {
	source     EnergySource
	transports []Transport
	interval   time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// NewPublisher wires a source to its transports. An interval <= 0
// defaults to ~60 Hz.
func NewPublisher(interval time.Duration, source EnergySource, transports ...Transport) (*Publisher, error) {
	if source == nil {
		return nil, fmt.Errorf("publisher: energy source cannot be nil")
	}
	if len(transports) == 0 {
		return nil, fmt.Errorf("publisher: at least one transport required")
	}
	if interval <= 0 {
		interval = time.Duration(config.DefaultSendIntervalMs) * time.Millisecond
		applog.Warnf("Publisher: Invalid interval provided, defaulting to %s", interval)
	}

	return &Publisher{
		source:     source,
		transports: transports,
		interval:   interval,
	}, nil
}

// Start begins periodic publishing. Safe to call on a running publisher;
// subsequent calls are no-ops.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("Publisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("Publisher: Started (interval %s, %d transports)", p.interval, len(p.transports))
		for {
			select {
			case <-ticker.C:
				p.publishFrame()
			case <-doneChan:
				return
			}
		}
	}()
}

func (p *Publisher) publishFrame() {
	energies := p.source.BandEnergies()

	// Each frame owns its band slice: transports hand frames to other
	// goroutines (JSON broadcast), so the data must not be reused.
	bands := make([]float64, config.NumBands)
	copy(bands, energies[:])

	frame := EnergyFrame{
		Type:      "band_energy",
		Timestamp: time.Now().UnixNano(),
		Level:     p.source.AudioLevel(),
		Bands:     bands,
	}

	for _, t := range p.transports {
		if err := t.Send(frame); err != nil {
			applog.Debugf("Publisher: Transport send failed: %v", err)
		}
	}
}

// Stop signals the publishing goroutine to exit and waits for it. Safe to
// call repeatedly or on a never-started publisher.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Infof("Publisher: Stopped")
	return nil
}

// Close implements io.Closer by stopping the publisher.
func (p *Publisher) Close() error {
	return p.Stop()
}

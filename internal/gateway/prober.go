package gateway

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultProbeInterval matches the original dashboard's health polling cadence
const DefaultProbeInterval = 30 * time.Second

// Prober tracks engine liveness with a periodic ping. Launch and send
// operations consult Online() before attempting any network call, so an
// offline engine fails fast instead of burning a full webhook timeout.
type Prober struct {
	gateway  Gateway
	interval time.Duration
	online   atomic.Bool
	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewProber creates a prober for the given gateway
func NewProber(gateway Gateway, interval time.Duration) *Prober {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &Prober{
		gateway:  gateway,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins probing. The first check runs immediately so the online
// signal is meaningful before the first tick.
func (p *Prober) Start() {
	go func() {
		defer close(p.doneChan)

		p.check()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopChan:
				log.Println("Prober stopping...")
				return
			case <-ticker.C:
				p.check()
			}
		}
	}()

	log.Printf("Prober started, interval: %v", p.interval)
}

// Stop stops probing and waits for the probe loop to exit. Safe to call
// more than once.
func (p *Prober) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	<-p.doneChan
}

// Online reports the last observed engine liveness
func (p *Prober) Online() bool {
	return p.online.Load()
}

func (p *Prober) check() {
	err := p.gateway.Ping(context.Background())
	wasOnline := p.online.Load()
	isOnline := err == nil

	p.online.Store(isOnline)

	if isOnline && !wasOnline {
		log.Println("Automation engine is online")
	}
	if !isOnline && wasOnline {
		log.Printf("Automation engine went offline: %v", err)
	}
}

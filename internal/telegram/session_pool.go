package telegram

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SessionFactory creates a live session for the given owner
type SessionFactory func(ownerID int64) (Session, error)

type poolEntry struct {
	session  Session
	refs     int
	lastUsed time.Time
}

// SessionPool caches long-lived per-owner sessions with an explicit
// acquire/release contract. Sessions are created lazily on first acquire,
// shared between that owner's concurrent campaigns, and evicted once idle
// for longer than the configured TTL.
type SessionPool struct {
	mu      sync.Mutex
	factory SessionFactory
	idleTTL time.Duration
	entries map[int64]*poolEntry
	stop    chan struct{}
	done    chan struct{}
}

// NewSessionPool creates a pool and starts its idle-eviction loop
func NewSessionPool(factory SessionFactory, idleTTL time.Duration) *SessionPool {
	p := &SessionPool{
		factory: factory,
		idleTTL: idleTTL,
		entries: make(map[int64]*poolEntry),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.evictLoop()
	return p
}

// Acquire returns the owner's session, creating it if needed. The returned
// release function must be called once the caller is done; the session stays
// cached afterwards until idle eviction.
func (p *SessionPool) Acquire(ownerID int64) (Session, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[ownerID]
	if !ok {
		session, err := p.factory(ownerID)
		if err != nil {
			return nil, nil, fmt.Errorf("create session for owner %d: %w", ownerID, err)
		}
		entry = &poolEntry{session: session}
		p.entries[ownerID] = entry
		logrus.Infof("Session created for owner %d", ownerID)
	}

	entry.refs++
	entry.lastUsed = time.Now()

	var once sync.Once
	release := func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			entry.refs--
			entry.lastUsed = time.Now()
		})
	}
	return entry.session, release, nil
}

func (p *SessionPool) evictLoop() {
	defer close(p.done)
	interval := p.idleTTL / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.evictIdle()
		case <-p.stop:
			return
		}
	}
}

func (p *SessionPool) evictIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ownerID, entry := range p.entries {
		if entry.refs == 0 && time.Since(entry.lastUsed) > p.idleTTL {
			if err := entry.session.Close(); err != nil {
				logrus.Warnf("Failed to close idle session for owner %d: %v", ownerID, err)
			}
			delete(p.entries, ownerID)
			logrus.Infof("Evicted idle session for owner %d", ownerID)
		}
	}
}

// Close stops eviction and tears down every cached session
func (p *SessionPool) Close() {
	close(p.stop)
	<-p.done

	p.mu.Lock()
	defer p.mu.Unlock()
	for ownerID, entry := range p.entries {
		if err := entry.session.Close(); err != nil {
			logrus.Warnf("Failed to close session for owner %d: %v", ownerID, err)
		}
		delete(p.entries, ownerID)
	}
	logrus.Info("All Telegram sessions closed")
}

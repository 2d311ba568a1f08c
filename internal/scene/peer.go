// SPDX-License-Identifier: MIT
package scene

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// LogPeer stands in for a conversational voice session. It only logs, and
// gives every opening a fresh conversation ID.
type LogPeer struct {
	Name string

	mu     sync.Mutex
	id     uuid.UUID
	opened int
}

var _ Peer = (*LogPeer)(nil)

// Open starts a conversation unless ctx is done.
func (p *LogPeer) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.id = uuid.New()
	p.opened++
	logger.Infof("%s: conversation %s opened", p.name(), p.id)
	return nil
}

// Close ends the current conversation. Closing twice is harmless.
func (p *LogPeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.id == uuid.Nil {
		return nil
	}
	logger.Infof("%s: conversation %s closed", p.name(), p.id)
	p.id = uuid.Nil
	return nil
}

// Conversation returns the open conversation ID, or uuid.Nil.
func (p *LogPeer) Conversation() uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.id
}

// Opened counts successful Opens.
func (p *LogPeer) Opened() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened
}

func (p *LogPeer) name() string {
	if p.Name == "" {
		return "voice peer"
	}
	return p.Name
}

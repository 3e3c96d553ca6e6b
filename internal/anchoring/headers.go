package anchoring

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// BlockHeader is one new-tip notification from a header feed.
type BlockHeader struct {
	Height  uint32
	HashHex string
}

// HeaderStream is one live connection to a header feed.
type HeaderStream interface {
	// Next blocks until the feed delivers a header or the connection
	// drops.
	Next(ctx context.Context) (BlockHeader, error)
	Close() error
}

// HeaderSource dials the external block-header feed (typically the chain
// scanner's WebSocket endpoint).
type HeaderSource interface {
	Connect(ctx context.Context) (HeaderStream, error)
}

// ErrListenerStopped is returned from Run after Disconnect, or once the
// reconnect budget is exhausted.
var ErrListenerStopped = errors.New("anchoring: header listener stopped")

const (
	headerBackoffBase = time.Second
	headerBackoffCap  = 30 * time.Second
	headerMaxAttempts = 10
)

// HeaderListener consumes a block-header feed and hands each header to a
// callback, reconnecting on connection loss with exponential backoff. A
// manual Disconnect suppresses any further reconnection.
type HeaderListener struct {
	source  HeaderSource
	onBlock func(BlockHeader)
	log     *log.Logger

	mu               sync.Mutex
	manualDisconnect bool
	stream           HeaderStream
}

// NewHeaderListener builds a listener delivering headers to onBlock.
func NewHeaderListener(source HeaderSource, onBlock func(BlockHeader), logger *log.Logger) *HeaderListener {
	if logger == nil {
		logger = log.New(log.Writer(), "[headers] ", log.LstdFlags)
	}
	return &HeaderListener{source: source, onBlock: onBlock, log: logger}
}

// reconnectDelay is the wait before reconnect attempt n (1-based):
// min(2^(n-1) * 1s, 30s).
func reconnectDelay(attempt int) time.Duration {
	d := headerBackoffBase << (attempt - 1)
	if attempt > 5 || d > headerBackoffCap {
		return headerBackoffCap
	}
	return d
}

// Run connects and consumes headers until ctx is cancelled, Disconnect is
// called, or 10 consecutive reconnect attempts fail. A successful connect
// resets the attempt counter.
func (l *HeaderListener) Run(ctx context.Context) error {
	attempt := 0
	for {
		if l.disconnected() {
			return ErrListenerStopped
		}

		stream, err := l.source.Connect(ctx)
		if err != nil {
			attempt++
			if attempt >= headerMaxAttempts {
				l.log.Printf("giving up after %d reconnect attempts: %v", attempt, err)
				return ErrListenerStopped
			}
			delay := reconnectDelay(attempt)
			l.log.Printf("connect failed (attempt %d), retrying in %s: %v", attempt, delay, err)
			if err := sleepCtx(ctx, delay); err != nil {
				return err
			}
			continue
		}
		attempt = 0
		l.setStream(stream)

		err = l.consume(ctx, stream)
		l.setStream(nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if l.disconnected() {
				return ErrListenerStopped
			}
			l.log.Printf("header stream dropped, reconnecting: %v", err)
		}
	}
}

func (l *HeaderListener) consume(ctx context.Context, stream HeaderStream) error {
	defer stream.Close()
	for {
		header, err := stream.Next(ctx)
		if err != nil {
			return err
		}
		l.onBlock(header)
	}
}

// Disconnect stops the listener and suppresses reconnection. Safe to call
// at any time, including before Run.
func (l *HeaderListener) Disconnect() {
	l.mu.Lock()
	l.manualDisconnect = true
	stream := l.stream
	l.stream = nil
	l.mu.Unlock()
	if stream != nil {
		stream.Close()
	}
}

func (l *HeaderListener) disconnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.manualDisconnect
}

func (l *HeaderListener) setStream(s HeaderStream) {
	l.mu.Lock()
	l.stream = s
	l.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Package buffer holds inbound messages between processing cycles.
//
// The buffer is the only structure shared between the messaging event path
// and the cycle runner, so every operation takes the buffer lock. Drain
// snapshots its cutoff instant under that lock, which makes a concurrent
// Append land either fully before or fully after the drain.
package buffer

import (
	"strings"
	"sync"
	"time"

	"github.com/kyohei-s/oboegaki/pkg/model"
)

type Buffer struct {
	mu   sync.Mutex
	msgs []*model.Message
}

func New() *Buffer {
	return &Buffer{}
}

// Append stores one inbound message. Messages with empty trimmed text are
// dropped; the messaging layer filters them already, this is the contract.
func (b *Buffer) Append(msg *model.Message) {
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
}

// Drain atomically removes and returns all buffered messages stamped at or
// before the snapshot instant, preserving arrival order, and returns the
// snapshot as the new watermark. Removal alone guarantees each message is
// drained exactly once; there is no lower time bound, so messages stamped
// before the previous watermark (offline delivery flushed after a
// reconnect carries the original send timestamps) are swept into the next
// batch instead of stranding in the buffer. Messages stamped after the
// snapshot stay buffered for the next cycle; timestamps come from the
// messaging service and can run ahead of the local clock. An empty batch
// is a normal result.
func (b *Buffer) Drain() ([]*model.Message, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := time.Now()

	var batch, rest []*model.Message
	for _, msg := range b.msgs {
		if msg.Timestamp.After(cutoff) {
			rest = append(rest, msg)
		} else {
			batch = append(batch, msg)
		}
	}
	b.msgs = rest

	return batch, cutoff
}

// Len reports the number of buffered messages.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.msgs)
}

// Package whatsapp connects to WhatsApp via whatsmeow and pushes inbound
// group messages into the processing pipeline.
package whatsapp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kyohei-s/oboegaki/pkg/model"
	"github.com/kyohei-s/oboegaki/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	qrterminal "github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	_ "modernc.org/sqlite"
)

const groupInfoTimeout = 10 * time.Second

// Handler receives each accepted inbound message. It is invoked from
// whatsmeow's event goroutine and may fire zero or more times after any
// connection gap, so implementations must synchronize internally.
type Handler func(*model.Message)

type Listener struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	handler   Handler
	handlerID uint32
	cancel    context.CancelFunc

	mu         sync.Mutex
	groupNames map[string]string
}

// New opens the session store at storePath and prepares a client. The
// session survives restarts; a missing session triggers QR login on Start.
func New(storePath string, handler Handler) (*Listener, error) {
	if err := os.MkdirAll(filepath.Dir(storePath), 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create session store dir", goerr.V("path", storePath))
	}

	dsn := "file:" + filepath.ToSlash(storePath) + "?_pragma=foreign_keys(1)"
	container, err := sqlstore.New(context.Background(), "sqlite", dsn, waLog.Noop)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open whatsapp session store")
	}

	device, err := container.GetFirstDevice(context.Background())
	if err != nil {
		_ = container.Close()
		return nil, goerr.Wrap(err, "failed to load whatsapp device")
	}

	l := &Listener{
		client:     whatsmeow.NewClient(device, waLog.Noop),
		container:  container,
		handler:    handler,
		groupNames: make(map[string]string),
	}
	l.handlerID = l.client.AddEventHandler(l.handleEvent)

	return l, nil
}

// Start connects the client. When no session exists yet, the login QR code
// is rendered to stdout for scanning.
func (l *Listener) Start(ctx context.Context) error {
	ctx, l.cancel = context.WithCancel(ctx)

	if l.client.Store.ID == nil {
		qrChan, err := l.client.GetQRChannel(ctx)
		if err != nil {
			l.cancel()
			return goerr.Wrap(err, "failed to get whatsapp qr channel")
		}
		go l.consumeQR(ctx, qrChan)
	}

	if err := l.client.Connect(); err != nil {
		l.cancel()
		return goerr.Wrap(err, "failed to connect to whatsapp")
	}

	logging.From(ctx).Info("whatsapp connected")
	return nil
}

// Stop disconnects and closes the session store.
func (l *Listener) Stop() error {
	if l.cancel != nil {
		l.cancel()
	}

	if l.handlerID != 0 {
		l.client.RemoveEventHandler(l.handlerID)
		l.handlerID = 0
	}
	l.client.Disconnect()

	if l.container != nil {
		if err := l.container.Close(); err != nil {
			return goerr.Wrap(err, "failed to close whatsapp session store")
		}
		l.container = nil
	}
	return nil
}

func (l *Listener) consumeQR(ctx context.Context, qrChan <-chan whatsmeow.QRChannelItem) {
	logger := logging.From(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-qrChan:
			if !ok {
				return
			}

			switch evt.Event {
			case whatsmeow.QRChannelEventCode:
				logger.Info("scan the QR code below to log in")
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
			default:
				if evt.Error != nil {
					logger.Warn("whatsapp login event", "event", evt.Event, "error", evt.Error)
				} else {
					logger.Info("whatsapp login event", "event", evt.Event)
				}
			}
		}
	}
}

func (l *Listener) handleEvent(evt interface{}) {
	switch e := evt.(type) {
	case *events.Message:
		l.handleMessage(e)
	}
}

// handleMessage filters and converts one inbound event. Self-sent events,
// non-group chats, and empty-text messages are dropped here so the buffer
// only ever sees storable messages.
func (l *Listener) handleMessage(evt *events.Message) {
	if evt == nil || evt.Message == nil || evt.Info.IsFromMe || !evt.Info.IsGroup {
		return
	}

	text := strings.TrimSpace(evt.Message.GetConversation())
	if text == "" && evt.Message.GetExtendedTextMessage() != nil {
		text = strings.TrimSpace(evt.Message.GetExtendedTextMessage().GetText())
	}
	if text == "" {
		return
	}

	groupID := evt.Info.Chat.String()
	l.handler(&model.Message{
		Timestamp: evt.Info.Timestamp,
		Sender:    evt.Info.Sender.ToNonAD().String(),
		GroupID:   groupID,
		GroupName: l.groupName(evt.Info.Chat),
		Text:      text,
	})
}

// groupName resolves a group's display name, caching per JID. Lookup
// failures fall back to the empty string so the message renders with the
// group ID instead. The fallback is cached as well: this runs on the event
// goroutine, and a group that keeps failing to resolve must not block
// every one of its messages for groupInfoTimeout.
func (l *Listener) groupName(jid types.JID) string {
	key := jid.String()

	l.mu.Lock()
	name, ok := l.groupNames[key]
	l.mu.Unlock()
	if ok {
		return name
	}

	ctx, cancel := context.WithTimeout(context.Background(), groupInfoTimeout)
	defer cancel()

	info, err := l.client.GetGroupInfo(ctx, jid)
	if err != nil || info == nil {
		logging.Default().Warn("failed to resolve group name", "group", key, "error", err)
	} else {
		name = info.Name
	}

	l.mu.Lock()
	l.groupNames[key] = name
	l.mu.Unlock()
	return name
}

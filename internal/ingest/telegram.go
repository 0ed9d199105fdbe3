// Package ingest authenticates against the Telegram user API via
// github.com/gotd/td, walks every dialog's history, and hands raw
// messages to the Store after encrypting their text. Ingestion is a
// resumable, watermark-driven backfill, not a live-update listener.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/query"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// Dialog is a flattened view of one Telegram dialog: the chat plus
// resolved title/username, independent of whether the peer is a user,
// chat, or channel.
type Dialog struct {
	ChatID      int64
	ChatType    string // private|group|supergroup|channel
	Title       string
	Username    string
	InputPeer   tg.InputPeerClass
	Participants int
}

// RawMessage is one history item fetched from a dialog, still carrying
// plaintext; the Ingestor encrypts it before it ever reaches the Store.
type RawMessage struct {
	ChatID      int64
	MessageID   int64
	FromUserID  int64
	Date        int64 // unix seconds, as returned by the API
	Text        string
	IsReply     bool
	IsForwarded bool
	EditDate    int64
	MessageType string
}

// TelegramClient wraps telegram.Client with the Ingestor's narrower,
// synchronous surface: authenticate once, then pull dialogs/history on
// demand. It intentionally does not register an update dispatcher:
// this core backfills on a schedule, it does not tail live updates.
type TelegramClient struct {
	client *telegram.Client
	api    *tg.Client
	log    *zap.Logger

	codeCh      chan string
	interactive bool
}

// CodeInput is the channel used to deliver an out-of-band login code
// during the first-run interactive authentication flow.
func (c *TelegramClient) CodeInput() chan<- string { return c.codeCh }

// NewTelegramClient constructs a client backed by a file-persisted
// session under sessionPath, so re-authentication is only needed once.
func NewTelegramClient(apiID int, apiHash string, sessionPath string, log *zap.Logger) *TelegramClient {
	c := &TelegramClient{
		log:    log,
		codeCh: make(chan string),
	}
	c.client = telegram.NewClient(apiID, apiHash, telegram.Options{
		Logger:         log,
		SessionStorage: &session.FileStorage{Path: sessionPath},
	})
	return c
}

// Run authenticates (if needed) and invokes fn with a live API handle.
// fn should perform all ingestion work and return when done; Run
// itself returns once fn returns or ctx is cancelled.
func (c *TelegramClient) Run(ctx context.Context, phone string, fn func(ctx context.Context) error) error {
	return c.client.Run(ctx, func(ctx context.Context) error {
		if err := c.authenticate(ctx, phone); err != nil {
			return fmt.Errorf("telegram authentication failed: %w", err)
		}
		c.api = c.client.API()
		c.log.Info("telegram client authenticated")
		return fn(ctx)
	})
}

func (c *TelegramClient) authenticate(ctx context.Context, phone string) error {
	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to query auth status: %w", err)
	}
	if status.Authorized {
		return nil
	}
	if !c.interactive {
		return ErrAuthRequired
	}

	flow := auth.NewFlow(
		auth.Constant(phone, "", auth.CodeAuthenticatorFunc(
			func(ctx context.Context, sentCode *tg.AuthSentCode) (string, error) {
				c.log.Info("waiting for Telegram login code")
				select {
				case code := <-c.codeCh:
					return strings.TrimSpace(code), nil
				case <-ctx.Done():
					return "", ctx.Err()
				}
			},
		)),
		auth.SendCodeOptions{},
	)
	return flow.Run(ctx, c.client.Auth())
}

// Dialogs returns every dialog visible to the authenticated user,
// resolving each peer to a stable chat_id and title.
func (c *TelegramClient) Dialogs(ctx context.Context) ([]Dialog, error) {
	var dialogs []Dialog

	iter := query.GetDialogs(c.api).Iter()
	for iter.Next(ctx) {
		elem := iter.Value()
		d, ok := elem.Dialog.(*tg.Dialog)
		if !ok {
			continue
		}

		chatID, chatType := peerIDAndType(d.Peer)
		title, username := peerTitleAndUsername(d.Peer, elem.Entities)

		inputPeer, err := inputPeerFor(d.Peer, elem.Entities)
		if err != nil {
			c.log.Warn("could not resolve input peer, skipping dialog",
				zap.Int64("chat_id", chatID), zap.Error(err))
			continue
		}

		dialogs = append(dialogs, Dialog{
			ChatID:    chatID,
			ChatType:  chatType,
			Title:     title,
			Username:  username,
			InputPeer: inputPeer,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("iterate dialogs: %w", err)
	}

	return dialogs, nil
}

// History yields up to limit messages from dialog strictly newer than
// sinceUnix, newest first, handing each page to yield as it arrives so
// the Ingestor can batch and persist incrementally rather than holding
// an entire dialog's history in memory.
func (c *TelegramClient) History(ctx context.Context, dialog Dialog, sinceUnix int64, limit int, yield func([]RawMessage) error) error {
	const pageSize = 100
	offsetID := 0
	fetched := 0

	for fetched < limit {
		req := &tg.MessagesGetHistoryRequest{
			Peer:     dialog.InputPeer,
			OffsetID: offsetID,
			Limit:    pageSize,
		}
		resp, err := c.api.MessagesGetHistory(ctx, req)
		if err != nil {
			return fmt.Errorf("get history for chat %d: %w", dialog.ChatID, err)
		}

		msgs, users, chats := unwrapMessages(resp)
		if len(msgs) == 0 {
			return nil
		}

		page := make([]RawMessage, 0, len(msgs))
		oldestID := offsetID
		stop := false
		for _, m := range msgs {
			raw, ok := toRawMessage(m, dialog.ChatID, users, chats)
			if !ok {
				continue
			}
			if raw.Date <= sinceUnix {
				stop = true
				continue
			}
			page = append(page, raw)
			oldestID = raw.MessageID
		}

		if rem := limit - fetched; len(page) > rem {
			page = page[:rem]
			stop = true
		}

		if len(page) > 0 {
			if err := yield(page); err != nil {
				return err
			}
			fetched += len(page)
		}

		if stop || len(msgs) < pageSize {
			return nil
		}
		offsetID = int(oldestID)
	}
	return nil
}

func unwrapMessages(resp tg.MessagesMessagesClass) ([]tg.MessageClass, []tg.UserClass, []tg.ChatClass) {
	switch m := resp.(type) {
	case *tg.MessagesMessages:
		return m.Messages, m.Users, m.Chats
	case *tg.MessagesMessagesSlice:
		return m.Messages, m.Users, m.Chats
	case *tg.MessagesChannelMessages:
		return m.Messages, m.Users, m.Chats
	default:
		return nil, nil, nil
	}
}

func toRawMessage(m tg.MessageClass, chatID int64, users []tg.UserClass, chats []tg.ChatClass) (RawMessage, bool) {
	msg, ok := m.(*tg.Message)
	if !ok {
		return RawMessage{}, false
	}

	var fromUserID int64
	if msg.FromID != nil {
		fromUserID, _ = peerIDAndType(msg.FromID)
	} else if p, ok := msg.PeerID.(*tg.PeerUser); ok {
		fromUserID = p.UserID
	}

	msgType := "text"
	if msg.Media != nil {
		msgType = "media"
	}

	var editDate int64
	if msg.EditDate != 0 {
		editDate = int64(msg.EditDate)
	}

	return RawMessage{
		ChatID:      chatID,
		MessageID:   int64(msg.ID),
		FromUserID:  fromUserID,
		Date:        int64(msg.Date),
		Text:        msg.Message,
		IsReply:     msg.ReplyTo != nil,
		IsForwarded: msg.FwdFrom != nil,
		EditDate:    editDate,
		MessageType: msgType,
	}, true
}

func peerIDAndType(peer tg.PeerClass) (int64, string) {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return p.UserID, "private"
	case *tg.PeerChat:
		return p.ChatID, "group"
	case *tg.PeerChannel:
		return p.ChannelID, "channel"
	default:
		return 0, "unknown"
	}
}

func peerTitleAndUsername(peer tg.PeerClass, entities tg.Entities) (title, username string) {
	switch p := peer.(type) {
	case *tg.PeerUser:
		if u, ok := entities.Users[p.UserID]; ok {
			title = strings.TrimSpace(u.FirstName + " " + u.LastName)
			username = u.Username
		}
	case *tg.PeerChat:
		if ch, ok := entities.Chats[p.ChatID]; ok {
			title = ch.Title
		}
	case *tg.PeerChannel:
		if ch, ok := entities.Channels[p.ChannelID]; ok {
			title = ch.Title
			username = ch.Username
		}
	}
	return title, username
}

func inputPeerFor(peer tg.PeerClass, entities tg.Entities) (tg.InputPeerClass, error) {
	switch p := peer.(type) {
	case *tg.PeerUser:
		if u, ok := entities.Users[p.UserID]; ok {
			return &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}, nil
		}
	case *tg.PeerChat:
		return &tg.InputPeerChat{ChatID: p.ChatID}, nil
	case *tg.PeerChannel:
		if ch, ok := entities.Channels[p.ChannelID]; ok {
			return &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}, nil
		}
	}
	return nil, fmt.Errorf("could not resolve input peer for %+v", peer)
}

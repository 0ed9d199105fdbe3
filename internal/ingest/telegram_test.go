package ingest

import (
	"testing"

	"github.com/gotd/td/tg"
)

func TestPeerIDAndType(t *testing.T) {
	cases := []struct {
		peer     tg.PeerClass
		wantID   int64
		wantType string
	}{
		{&tg.PeerUser{UserID: 42}, 42, "private"},
		{&tg.PeerChat{ChatID: 7}, 7, "group"},
		{&tg.PeerChannel{ChannelID: 99}, 99, "channel"},
	}

	for _, tc := range cases {
		gotID, gotType := peerIDAndType(tc.peer)
		if gotID != tc.wantID || gotType != tc.wantType {
			t.Fatalf("peerIDAndType(%+v) = (%d, %s), want (%d, %s)",
				tc.peer, gotID, gotType, tc.wantID, tc.wantType)
		}
	}
}

func TestPeerTitleAndUsernameResolvesFromEntities(t *testing.T) {
	entities := tg.Entities{
		Users: map[int64]*tg.User{
			1: {ID: 1, FirstName: "Ada", LastName: "Lovelace", Username: "ada"},
		},
		Channels: map[int64]*tg.Channel{
			2: {ID: 2, Title: "BD Leads", Username: "bdleads"},
		},
	}

	title, username := peerTitleAndUsername(&tg.PeerUser{UserID: 1}, entities)
	if title != "Ada Lovelace" || username != "ada" {
		t.Fatalf("got (%q, %q), want (%q, %q)", title, username, "Ada Lovelace", "ada")
	}

	title, username = peerTitleAndUsername(&tg.PeerChannel{ChannelID: 2}, entities)
	if title != "BD Leads" || username != "bdleads" {
		t.Fatalf("got (%q, %q), want (%q, %q)", title, username, "BD Leads", "bdleads")
	}
}

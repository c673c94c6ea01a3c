package net

import (
	"io"
	"strings"
	"testing"

	"github.com/mosaicnetworks/gitmesh/src/common"
	"github.com/mosaicnetworks/gitmesh/src/crdt"
)

func readAll(t *testing.T, input string) ([]Message, int) {
	framer := NewFramer(strings.NewReader(input))

	msgs := []Message{}
	protocolErrors := 0
	for {
		msg, err := framer.Next()
		if err == io.EOF {
			return msgs, protocolErrors
		}
		if err != nil {
			if !common.IsSync(err, common.Protocol) {
				t.Fatalf("unexpected error: %v", err)
			}
			protocolErrors++
			continue
		}
		msgs = append(msgs, msg)
	}
}

func TestFramerBackToBack(t *testing.T) {
	input := `{"command":"getOperations"}{"update":{"metaData":{"repositoryUrl":"r","branch":"refs/heads/main","commit":"c1","file":"a.txt"},"operations":[],"authors":[{"siteId":7,"name":"bob"}]}}` +
		"\n  " + `{"command":"getOperations"}`

	msgs, errs := readAll(t, input)
	if errs != 0 {
		t.Fatalf("expected no protocol errors, got %d", errs)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}

	if cmd, ok := msgs[0].(*CommandMessage); !ok || cmd.Name != CommandGetOperations {
		t.Fatalf("first message should be getOperations, got %#v", msgs[0])
	}

	upd, ok := msgs[1].(*UpdateMessage)
	if !ok {
		t.Fatalf("second message should be an update, got %#v", msgs[1])
	}
	if upd.Update.MetaData.File != "a.txt" || upd.Update.MetaData.Commit != "c1" {
		t.Fatalf("bad metadata %#v", upd.Update.MetaData)
	}
	if len(upd.Update.Authors) != 1 || upd.Update.Authors[0].SiteID != 7 {
		t.Fatalf("bad authors %#v", upd.Update.Authors)
	}
}

func TestFramerBracesInStrings(t *testing.T) {
	update := &Update{
		MetaData: MetaData{File: "x.go"},
		Operations: []crdt.Operation{
			{Kind: crdt.OpInsert, ID: crdt.OpID{Site: 3, Seq: 2}, Text: `func() { "}" \"{" }`},
		},
	}
	data, err := EncodeMessage(&UpdateMessage{Update: update})
	if err != nil {
		t.Fatal(err)
	}

	msgs, errs := readAll(t, string(data)+string(data))
	if errs != 0 {
		t.Fatalf("expected no protocol errors, got %d", errs)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	for _, m := range msgs {
		got := m.(*UpdateMessage).Update.Operations[0].Text
		if got != update.Operations[0].Text {
			t.Fatalf("text should be %q, not %q", update.Operations[0].Text, got)
		}
	}
}

func TestFramerSplitReads(t *testing.T) {
	data, _ := EncodeMessage(&CommandMessage{Name: CommandGetOperations})

	r, w := io.Pipe()
	go func() {
		for _, b := range data {
			w.Write([]byte{b})
		}
		w.Close()
	}()

	framer := NewFramer(r)
	msg, err := framer.Next()
	if err != nil {
		t.Fatal(err)
	}
	if cmd, ok := msg.(*CommandMessage); !ok || cmd.Name != CommandGetOperations {
		t.Fatalf("got %#v", msg)
	}
}

func TestFramerBareCommand(t *testing.T) {
	msgs, errs := readAll(t, `getOperations{"command":"getOperations"}getOperations`)
	if errs != 0 {
		t.Fatalf("expected no protocol errors, got %d", errs)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
}

func TestFramerRecovers(t *testing.T) {
	msgs, errs := readAll(t, `{"update":[1,2}xyz{"command":"getOperations"}`)
	if errs == 0 {
		t.Fatalf("expected protocol errors")
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message after the garbage, got %d", len(msgs))
	}
}

func TestDecodeLegacyUpdate(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"metaData":{"file":"f"},"operations":[],"authors":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	upd, ok := msg.(*UpdateMessage)
	if !ok || upd.Update.MetaData.File != "f" {
		t.Fatalf("got %#v", msg)
	}

	if _, err := DecodeMessage([]byte(`{"foo":1}`)); err == nil {
		t.Fatalf("unknown shapes should be rejected")
	}
}

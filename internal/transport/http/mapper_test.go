package http

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jiye888/chat/internal/core"
	"github.com/jiye888/chat/internal/proto"
)

func inbound(t *testing.T, typ string, data any) proto.Inbound {
	t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal inbound data: %v", err)
	}
	return proto.Inbound{Type: typ, Data: raw}
}

func TestInboundToCommand(t *testing.T) {
	cmd, protoErr, err := inboundToCommand(inbound(t, proto.InboundTypeJoin, proto.JoinData{Room: "r1"}))
	if err != nil || protoErr != nil {
		t.Fatalf("join mapping failed: %v %v", err, protoErr)
	}
	if cmd.Kind != core.CommandJoinRoom || cmd.Room != "r1" {
		t.Fatalf("join command wrong: %+v", cmd)
	}

	cmd, protoErr, err = inboundToCommand(inbound(t, proto.InboundTypeSave, proto.SaveData{Room: "r1", Content: "hi"}))
	if err != nil || protoErr != nil {
		t.Fatalf("save mapping failed: %v %v", err, protoErr)
	}
	if cmd.Kind != core.CommandSendMessage || cmd.Content != "hi" {
		t.Fatalf("save command wrong: %+v", cmd)
	}

	cmd, protoErr, err = inboundToCommand(inbound(t, proto.InboundTypeAddRead, proto.AddReadData{Room: "r1", MessageID: 7}))
	if err != nil || protoErr != nil {
		t.Fatalf("add-read mapping failed: %v %v", err, protoErr)
	}
	if cmd.Kind != core.CommandAddRead || cmd.MessageID != 7 {
		t.Fatalf("add-read command wrong: %+v", cmd)
	}
}

func TestInboundToCommandValidation(t *testing.T) {
	_, protoErr, err := inboundToCommand(inbound(t, proto.InboundTypeJoin, proto.JoinData{}))
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if protoErr == nil || protoErr.Code != core.KindInvalidInput.Code() {
		t.Fatalf("expected invalid_input, got %+v", protoErr)
	}

	_, protoErr, err = inboundToCommand(proto.Inbound{Type: "bogus"})
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if protoErr == nil {
		t.Fatal("expected protocol error for unknown type")
	}
}

func TestOutboundFromEvent(t *testing.T) {
	msg := &core.Message{ID: 9, Room: "r1", Sender: 2, Content: "hi", SentAt: time.Unix(1700000000, 0), Unread: 3}

	out := outboundFromEvent(&core.Event{Kind: core.EventMessage, Room: "r1", Message: msg})
	if out.Type != proto.OutboundTypeMessage {
		t.Fatalf("type = %q, want %q", out.Type, proto.OutboundTypeMessage)
	}
	data, ok := out.Data.(proto.ChatMessage)
	if !ok || data.ID != 9 || data.Unread != 3 {
		t.Fatalf("message payload wrong: %+v", out.Data)
	}

	prev := int64(5)
	last := int64(9)
	out = outboundFromEvent(&core.Event{
		Kind:     core.EventReadAll,
		Room:     "r1",
		Member:   2,
		Interval: &core.ReadInterval{Prev: &prev, Last: &last},
	})
	readAll, ok := out.Data.(proto.ReadAllData)
	if !ok || readAll.PrevReadID == nil || *readAll.PrevReadID != 5 || *readAll.LastReadID != 9 {
		t.Fatalf("read-all payload wrong: %+v", out.Data)
	}

	out = outboundFromEvent(&core.Event{Kind: core.EventError, Error: core.NotFound("gone")})
	if out.Type != proto.OutboundTypeError || out.Error == nil || out.Error.Code != "not_found" {
		t.Fatalf("error payload wrong: %+v", out)
	}
}

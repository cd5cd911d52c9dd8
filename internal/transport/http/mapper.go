package http

import (
	"encoding/json"

	"github.com/jiye888/chat/internal/core"
	"github.com/jiye888/chat/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, nil, err
		}
		if join.Room == "" {
			return nil, &proto.Error{Code: core.KindInvalidInput.Code(), Msg: "room is required"}, nil
		}
		return &core.Command{
			Kind: core.CommandJoinRoom,
			Room: join.Room,
		}, nil, nil
	case proto.InboundTypeLeave:
		var leave proto.JoinData
		if err := json.Unmarshal(inbound.Data, &leave); err != nil {
			return nil, nil, err
		}
		if leave.Room == "" {
			return nil, &proto.Error{Code: core.KindInvalidInput.Code(), Msg: "room is required"}, nil
		}
		return &core.Command{
			Kind: core.CommandLeaveRoom,
			Room: leave.Room,
		}, nil, nil
	case proto.InboundTypeSave:
		var save proto.SaveData
		if err := json.Unmarshal(inbound.Data, &save); err != nil {
			return nil, nil, err
		}
		if save.Room == "" {
			return nil, &proto.Error{Code: core.KindInvalidInput.Code(), Msg: "room is required"}, nil
		}
		return &core.Command{
			Kind:    core.CommandSendMessage,
			Room:    save.Room,
			Content: save.Content,
		}, nil, nil
	case proto.InboundTypeAddRead:
		var read proto.AddReadData
		if err := json.Unmarshal(inbound.Data, &read); err != nil {
			return nil, nil, err
		}
		if read.Room == "" || read.MessageID == 0 {
			return nil, &proto.Error{Code: core.KindInvalidInput.Code(), Msg: "room and message_id are required"}, nil
		}
		return &core.Command{
			Kind:      core.CommandAddRead,
			Room:      read.Room,
			MessageID: read.MessageID,
		}, nil, nil
	case proto.InboundTypeDelete:
		var del proto.DeleteData
		if err := json.Unmarshal(inbound.Data, &del); err != nil {
			return nil, nil, err
		}
		if del.Room == "" || del.MessageID == 0 {
			return nil, &proto.Error{Code: core.KindInvalidInput.Code(), Msg: "room and message_id are required"}, nil
		}
		return &core.Command{
			Kind:      core.CommandDeleteMessage,
			Room:      del.Room,
			MessageID: del.MessageID,
		}, nil, nil
	default:
		return nil, &proto.Error{Code: core.KindInvalidInput.Code(), Msg: "unknown message type"}, nil
	}
}

func toChatMessage(m *core.Message) proto.ChatMessage {
	return proto.ChatMessage{
		ID:      m.ID,
		Room:    m.Room,
		Sender:  m.Sender,
		Content: m.Content,
		TS:      m.SentAt.UnixMilli(),
		Deleted: m.Deleted,
		System:  m.System,
		Unread:  m.Unread,
	}
}

func toChatMessages(msgs []*core.Message) []proto.ChatMessage {
	out := make([]proto.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toChatMessage(m))
	}
	return out
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessage:
		return proto.Outbound{
			Type: proto.OutboundTypeMessage,
			Data: toChatMessage(event.Message),
		}
	case core.EventPreview:
		return proto.Outbound{
			Type: proto.OutboundTypePreview,
			Data: proto.PreviewData{
				Room:    event.Room,
				Preview: event.Preview,
			},
		}
	case core.EventReadUpdated:
		return proto.Outbound{
			Type: proto.OutboundTypeReadUpdated,
			Data: proto.ReadUpdatedData{
				Room:      event.Room,
				MessageID: event.MessageID,
				Unread:    event.Unread,
			},
		}
	case core.EventReadAll:
		data := proto.ReadAllData{
			Room:   event.Room,
			Member: event.Member,
		}
		if event.Interval != nil {
			data.PrevReadID = event.Interval.Prev
			data.LastReadID = event.Interval.Last
		}
		return proto.Outbound{
			Type: proto.OutboundTypeReadAll,
			Data: data,
		}
	case core.EventDeleted:
		return proto.Outbound{
			Type: proto.OutboundTypeDeleted,
			Data: proto.DeletedData{
				Room:      event.Room,
				MessageID: event.MessageID,
			},
		}
	case core.EventRoomDeleted:
		return proto.Outbound{
			Type: proto.OutboundTypeRoomDeleted,
			Data: proto.RoomDeletedData{Room: event.Room},
		}
	case core.EventInviteNotice:
		return proto.Outbound{
			Type: proto.OutboundTypeInvite,
			Data: proto.NoticeData{
				Room:     event.Room,
				Messages: toChatMessages(event.Messages),
			},
		}
	case core.EventLeaveNotice:
		var msgs []*core.Message
		if event.Message != nil {
			msgs = []*core.Message{event.Message}
		}
		return proto.Outbound{
			Type: proto.OutboundTypeLeaveNotice,
			Data: proto.NoticeData{
				Room:     event.Room,
				Messages: toChatMessages(msgs),
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "internal", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Kind.Code(), Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "internal", Msg: "unhandled event"}}
	}
}

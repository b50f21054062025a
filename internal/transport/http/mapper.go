package http

import (
	"time"

	"github.com/vovakirdan/gifchat-server/internal/core"
	"github.com/vovakirdan/gifchat-server/internal/proto"
	"github.com/vovakirdan/gifchat-server/internal/service/rooms"
	"github.com/vovakirdan/gifchat-server/internal/store"
)

func outboundFromEvent(event *core.Event) proto.Outbound {
	out := proto.Outbound{Type: proto.OutboundTypeEvent}

	switch event.Kind {
	case core.EventNewRoom:
		out.Event = proto.EventNewRoom
		if event.RoomInfo != nil {
			out.Data = roomInfoToProto(event.RoomInfo)
		}
	case core.EventRemoveRoom:
		out.Event = proto.EventRemoveRoom
		out.Data = proto.RemoveRoom{ID: event.Room}
	case core.EventUserJoined:
		out.Event = proto.EventJoin
		out.Data = proto.System{User: event.User, Chat: event.Text}
	case core.EventUserLeft:
		out.Event = proto.EventExit
		out.Data = proto.System{User: event.User, Chat: event.Text}
	case core.EventChat:
		out.Event = proto.EventChat
		if event.Message != nil {
			out.Data = messageToProto(event.Message)
		}
	default:
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: core.ErrCodeBadRequest, Msg: "unknown event"},
		}
	}
	return out
}

func roomInfoToProto(info *core.RoomInfo) proto.Room {
	return proto.Room{
		ID:        info.ID,
		Title:     info.Title,
		Max:       info.Capacity,
		Owner:     info.Owner,
		Private:   info.Private,
		CreatedAt: formatTime(info.CreatedAt),
	}
}

func messageToProto(msg *core.Message) proto.Chat {
	return proto.Chat{
		ID:        msg.ID,
		Room:      msg.Room,
		User:      msg.User,
		Chat:      msg.Text,
		Gif:       msg.Image,
		CreatedAt: formatTime(msg.CreatedAt),
	}
}

func roomToProto(r *store.Room, occupancy int) proto.Room {
	return proto.Room{
		ID:        r.ID,
		Title:     r.Title,
		Max:       r.Capacity,
		Owner:     r.Owner,
		Private:   r.Private(),
		Occupancy: occupancy,
		CreatedAt: formatTime(r.CreatedAt),
	}
}

func roomViewsToProto(views []rooms.RoomView) []proto.Room {
	out := make([]proto.Room, 0, len(views))
	for _, v := range views {
		out = append(out, roomToProto(v.Room, v.Occupancy))
	}
	return out
}

func chatsToProto(chats []*store.Chat) []proto.Chat {
	out := make([]proto.Chat, 0, len(chats))
	for _, c := range chats {
		out = append(out, proto.Chat{
			ID:        c.ID,
			Room:      c.RoomID,
			User:      c.User,
			Chat:      c.Text,
			Gif:       c.Image,
			CreatedAt: formatTime(c.CreatedAt),
		})
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

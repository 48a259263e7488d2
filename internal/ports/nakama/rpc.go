package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"ito/internal/app"
	"ito/internal/app/cleanup"
	"ito/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

var (
	roomService    *app.Service
	cleanupService *cleanup.Service
)

type rpcFunc = func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error)

type roomRequest struct {
	RoomID string `json:"roomId"`
}

type joinRequest struct {
	Password string `json:"password"`
}

type kickRequest struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

type topicRequest struct {
	RoomID string  `json:"roomId"`
	Topic  *string `json:"topic"`
}

type nameRequest struct {
	RoomID string  `json:"roomId"`
	Name   *string `json:"name"`
}

type avatarRequest struct {
	RoomID string `json:"roomId"`
	Avatar *int   `json:"avatar"`
}

type hintRequest struct {
	RoomID string  `json:"roomId"`
	Hint   *string `json:"hint"`
}

type successResponse struct {
	Success bool `json:"success"`
}

var okResponse = successResponse{Success: true}

// RegisterRPCs registers Nakama RPC endpoints.
func RegisterRPCs(initializer runtime.Initializer) error {
	rpcs := map[string]rpcFunc{
		RpcCreateRoom:       RpcCreateRoomHandler,
		RpcJoinRoom:         RpcJoinRoomHandler,
		RpcStartRoom:        RpcStartRoomHandler,
		RpcEndRoom:          RpcEndRoomHandler,
		RpcResetRoom:        RpcResetRoomHandler,
		RpcExitRoom:         RpcExitRoomHandler,
		RpcKickPlayer:       RpcKickPlayerHandler,
		RpcUpdateTopic:      RpcUpdateTopicHandler,
		RpcUpdateName:       RpcUpdateNameHandler,
		RpcUpdateAvatar:     RpcUpdateAvatarHandler,
		RpcUpdateHint:       RpcUpdateHintHandler,
		RpcSubmit:           RpcSubmitHandler,
		RpcWithdraw:         RpcWithdrawHandler,
		RpcHeartbeat:        RpcHeartbeatHandler,
		RpcGetRoomConfig:    RpcGetRoomConfigHandler,
		RpcGetValue:         RpcGetValueHandler,
		RpcGetRoomInfo:      RpcGetRoomInfoHandler,
		RpcInitPlayer:       RpcInitPlayerHandler,
		RpcCleanupScheduled: RpcCleanupScheduledHandler,
	}
	for id, fn := range rpcs {
		if err := initializer.RegisterRpc(id, fn); err != nil {
			return fmt.Errorf("register rpc %s: %w", id, err)
		}
	}
	return nil
}

// roomRPC adapts a typed room operation to the Nakama RPC signature: it
// resolves the caller, decodes the payload into Req, and encodes the result.
func roomRPC[Req any](name string, call func(ctx context.Context, userID string, req Req) (any, error)) rpcFunc {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
		if userID == "" {
			return "", runtime.NewError("Authentication required", codeUnauthenticated)
		}
		if roomService == nil {
			logger.Error("%s [User:%s]: room service not initialised", name, userID)
			return "", runtime.NewError("Internal error", codeInternal)
		}

		var req Req
		if payload != "" {
			if err := json.Unmarshal([]byte(payload), &req); err != nil {
				return "", runtime.NewError("Invalid payload", codeInvalidArgument)
			}
		}

		resp, err := call(ctx, userID, req)
		if err != nil {
			if domain.KindOf(err) == nil || domain.KindOf(err) == domain.ErrInternal {
				logger.Error("%s [User:%s]: %v", name, userID, err)
			} else {
				logger.Debug("%s [User:%s]: %v", name, userID, err)
			}
			return "", toRuntimeError(err)
		}

		b, err := json.Marshal(resp)
		if err != nil {
			logger.Error("%s [User:%s]: encode response: %v", name, userID, err)
			return "", runtime.NewError("Internal error", codeInternal)
		}
		return string(b), nil
	}
}

func required(field string) error {
	return fmt.Errorf("%w: %s is required", domain.ErrInvalidArgument, field)
}

// RpcCreateRoomHandler creates a room owned by the caller.
// Returns: {"roomId": "...", "password": "0420"}
var RpcCreateRoomHandler = roomRPC(RpcCreateRoom, func(ctx context.Context, userID string, _ struct{}) (any, error) {
	return roomService.CreateRoom(ctx, userID)
})

// RpcJoinRoomHandler joins the room behind a password.
// Payload: {"password": "0420"}
var RpcJoinRoomHandler = roomRPC(RpcJoinRoom, func(ctx context.Context, userID string, req joinRequest) (any, error) {
	return roomService.JoinRoom(ctx, userID, req.Password)
})

var RpcStartRoomHandler = roomRPC(RpcStartRoom, func(ctx context.Context, userID string, req roomRequest) (any, error) {
	return okResponse, roomService.StartRoom(ctx, userID, req.RoomID)
})

var RpcEndRoomHandler = roomRPC(RpcEndRoom, func(ctx context.Context, userID string, req roomRequest) (any, error) {
	return okResponse, roomService.EndRoom(ctx, userID, req.RoomID)
})

var RpcResetRoomHandler = roomRPC(RpcResetRoom, func(ctx context.Context, userID string, req roomRequest) (any, error) {
	return okResponse, roomService.ResetRoom(ctx, userID, req.RoomID)
})

var RpcExitRoomHandler = roomRPC(RpcExitRoom, func(ctx context.Context, userID string, req roomRequest) (any, error) {
	return okResponse, roomService.ExitRoom(ctx, userID, req.RoomID)
})

// RpcKickPlayerHandler marks another member as kicked.
// Payload: {"roomId": "...", "playerId": "..."}
var RpcKickPlayerHandler = roomRPC(RpcKickPlayer, func(ctx context.Context, userID string, req kickRequest) (any, error) {
	return okResponse, roomService.KickPlayer(ctx, userID, req.RoomID, req.PlayerID)
})

var RpcUpdateTopicHandler = roomRPC(RpcUpdateTopic, func(ctx context.Context, userID string, req topicRequest) (any, error) {
	if req.Topic == nil {
		return nil, required("topic")
	}
	return okResponse, roomService.UpdateTopic(ctx, userID, req.RoomID, *req.Topic)
})

var RpcUpdateNameHandler = roomRPC(RpcUpdateName, func(ctx context.Context, userID string, req nameRequest) (any, error) {
	if req.Name == nil {
		return nil, required("name")
	}
	return okResponse, roomService.UpdateName(ctx, userID, req.RoomID, *req.Name)
})

var RpcUpdateAvatarHandler = roomRPC(RpcUpdateAvatar, func(ctx context.Context, userID string, req avatarRequest) (any, error) {
	if req.Avatar == nil {
		return nil, required("avatar")
	}
	return okResponse, roomService.UpdateAvatar(ctx, userID, req.RoomID, *req.Avatar)
})

var RpcUpdateHintHandler = roomRPC(RpcUpdateHint, func(ctx context.Context, userID string, req hintRequest) (any, error) {
	if req.Hint == nil {
		return nil, required("hint")
	}
	return okResponse, roomService.UpdateHint(ctx, userID, req.RoomID, *req.Hint)
})

var RpcSubmitHandler = roomRPC(RpcSubmit, func(ctx context.Context, userID string, req roomRequest) (any, error) {
	return okResponse, roomService.Submit(ctx, userID, req.RoomID)
})

var RpcWithdrawHandler = roomRPC(RpcWithdraw, func(ctx context.Context, userID string, req roomRequest) (any, error) {
	return okResponse, roomService.Withdraw(ctx, userID, req.RoomID)
})

var RpcHeartbeatHandler = roomRPC(RpcHeartbeat, func(ctx context.Context, userID string, req roomRequest) (any, error) {
	return okResponse, roomService.Heartbeat(ctx, userID, req.RoomID)
})

// RpcGetRoomConfigHandler returns the member view of a room.
var RpcGetRoomConfigHandler = roomRPC(RpcGetRoomConfig, func(ctx context.Context, userID string, req roomRequest) (any, error) {
	return roomService.GetRoomConfig(ctx, userID, req.RoomID)
})

var RpcGetValueHandler = roomRPC(RpcGetValue, func(ctx context.Context, userID string, req roomRequest) (any, error) {
	return roomService.GetValue(ctx, userID, req.RoomID)
})

var RpcGetRoomInfoHandler = roomRPC(RpcGetRoomInfo, func(ctx context.Context, userID string, req roomRequest) (any, error) {
	return roomService.GetRoomInfo(ctx, userID, req.RoomID)
})

// RpcInitPlayerHandler records the caller as active and returns the room to resume, if any.
var RpcInitPlayerHandler = roomRPC(RpcInitPlayer, func(ctx context.Context, userID string, _ struct{}) (any, error) {
	return roomService.InitPlayer(ctx, userID)
})

// RpcCleanupScheduledHandler runs one reaper pass. It is meant for server-to-server
// calls (http key auth), so requests carrying a user session are refused.
func RpcCleanupScheduledHandler(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string); userID != "" {
		return "", runtime.NewError("Cleanup is not available to players", codePermissionDenied)
	}
	if cleanupService == nil {
		logger.Error("RpcCleanupScheduledHandler: cleanup service not initialised")
		return "", runtime.NewError("Internal error", codeInternal)
	}

	report, err := cleanupService.Run(ctx)
	if err != nil {
		logger.Warn("RpcCleanupScheduledHandler: sweep finished with errors: %v", err)
	}
	b, _ := json.Marshal(struct {
		Success bool `json:"success"`
		cleanup.Report
	}{Success: true, Report: report})
	return string(b), nil
}

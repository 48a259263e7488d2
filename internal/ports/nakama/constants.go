package nakama

// RPC ids registered with the Nakama runtime.
const (
	RpcCreateRoom       = "create_room"
	RpcJoinRoom         = "join_room"
	RpcStartRoom        = "start_room"
	RpcEndRoom          = "end_room"
	RpcResetRoom        = "reset_room"
	RpcExitRoom         = "exit_room"
	RpcKickPlayer       = "kick_player"
	RpcUpdateTopic      = "update_topic"
	RpcUpdateName       = "update_name"
	RpcUpdateAvatar     = "update_avatar"
	RpcUpdateHint       = "update_hint"
	RpcSubmit           = "submit"
	RpcWithdraw         = "withdraw"
	RpcHeartbeat        = "heartbeat"
	RpcGetRoomConfig    = "get_room_config"
	RpcGetValue         = "get_value"
	RpcGetRoomInfo      = "get_room_info"
	RpcInitPlayer       = "init_player"
	RpcCleanupScheduled = "cleanup_scheduled"
)

// Runtime env keys (the "runtime.env" section of the Nakama config).
const (
	EnvConfigPath      = "ito_config_path"
	EnvCleanupInterval = "ito_cleanup_interval_sec"
)

const (
	defaultConfigPath = "data/ito_config.json"

	// storageCollectionPrefix namespaces document collections inside Nakama storage.
	storageCollectionPrefix = "ito_"
)

// gRPC status codes used by runtime.NewError.
const (
	codeDeadlineExceeded   = 4
	codeInvalidArgument    = 3
	codeNotFound           = 5
	codeAlreadyExists      = 6
	codePermissionDenied   = 7
	codeResourceExhausted  = 8
	codeFailedPrecondition = 9
	codeInternal           = 13
	codeUnauthenticated    = 16
)

package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"ito/internal/app"
	"ito/internal/app/cleanup"
	"ito/internal/config"
	"ito/internal/ports/docstore"

	"github.com/heroiclabs/nakama-common/runtime"
)

func setupServices(t *testing.T, users ...string) {
	t.Helper()
	store := docstore.New(NewNakamaStorageBackend(newFakeStorage()))
	identities := newFakeIdentities(users...)
	roomService = app.NewService(store, identities, config.Default(), nil)
	cleanupService = cleanup.NewService(store, identities, noopLogger{}, config.Default())
	t.Cleanup(func() {
		roomService = nil
		cleanupService = nil
	})
}

func asUser(userID string) context.Context {
	return context.WithValue(context.Background(), runtime.RUNTIME_CTX_USER_ID, userID)
}

func wantCode(t *testing.T, err error, code int) {
	t.Helper()
	var rtErr *runtime.Error
	if !errors.As(err, &rtErr) {
		t.Fatalf("err = %v (%T), want *runtime.Error", err, err)
	}
	if rtErr.Code != code {
		t.Fatalf("code = %d (%s), want %d", rtErr.Code, rtErr.Message, code)
	}
}

func TestRoomRPCFlow(t *testing.T) {
	setupServices(t, "alice", "bob")

	raw, err := RpcCreateRoomHandler(asUser("alice"), noopLogger{}, nil, nil, "")
	if err != nil {
		t.Fatalf("create_room error = %v", err)
	}
	var ticket app.RoomTicket
	if err := json.Unmarshal([]byte(raw), &ticket); err != nil || ticket.RoomID == "" {
		t.Fatalf("create_room response = %s (%v)", raw, err)
	}

	payload, _ := json.Marshal(map[string]string{"password": ticket.Password})
	if _, err := RpcJoinRoomHandler(asUser("bob"), noopLogger{}, nil, nil, string(payload)); err != nil {
		t.Fatalf("join_room error = %v", err)
	}

	roomPayload, _ := json.Marshal(map[string]string{"roomId": ticket.RoomID})
	raw, err = RpcStartRoomHandler(asUser("alice"), noopLogger{}, nil, nil, string(roomPayload))
	if err != nil {
		t.Fatalf("start_room error = %v", err)
	}
	if raw != `{"success":true}` {
		t.Fatalf("start_room response = %s", raw)
	}

	raw, err = RpcGetValueHandler(asUser("bob"), noopLogger{}, nil, nil, string(roomPayload))
	if err != nil {
		t.Fatalf("get_value error = %v", err)
	}
	var value app.ValueView
	if err := json.Unmarshal([]byte(raw), &value); err != nil || value.Value < 1 || value.Value > 100 {
		t.Fatalf("get_value response = %s (%v)", raw, err)
	}

	raw, err = RpcGetRoomConfigHandler(asUser("bob"), noopLogger{}, nil, nil, string(roomPayload))
	if err != nil {
		t.Fatalf("get_room_config error = %v", err)
	}
	var view app.RoomView
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.AdminID != "alice" || len(view.Players) != 2 {
		t.Fatalf("view = %+v", view)
	}
}

func TestRoomRPCErrors(t *testing.T) {
	setupServices(t, "alice")

	_, err := RpcCreateRoomHandler(context.Background(), noopLogger{}, nil, nil, "")
	wantCode(t, err, codeUnauthenticated)

	_, err = RpcJoinRoomHandler(asUser("alice"), noopLogger{}, nil, nil, "{not json")
	wantCode(t, err, codeInvalidArgument)

	_, err = RpcJoinRoomHandler(asUser("alice"), noopLogger{}, nil, nil, `{"password":"12"}`)
	wantCode(t, err, codeInvalidArgument)

	_, err = RpcJoinRoomHandler(asUser("alice"), noopLogger{}, nil, nil, `{"password":"0000"}`)
	wantCode(t, err, codeNotFound)

	_, err = RpcUpdateTopicHandler(asUser("alice"), noopLogger{}, nil, nil, `{"roomId":"r1"}`)
	wantCode(t, err, codeInvalidArgument)

	_, err = RpcStartRoomHandler(asUser("alice"), noopLogger{}, nil, nil, `{}`)
	wantCode(t, err, codeInvalidArgument)

	_, err = RpcCreateRoomHandler(asUser("stranger"), noopLogger{}, nil, nil, "")
	wantCode(t, err, codeFailedPrecondition)
}

func TestRpcCleanupScheduledHandler(t *testing.T) {
	setupServices(t, "alice")

	_, err := RpcCleanupScheduledHandler(asUser("alice"), noopLogger{}, nil, nil, "")
	wantCode(t, err, codePermissionDenied)

	raw, err := RpcCleanupScheduledHandler(context.Background(), noopLogger{}, nil, nil, "")
	if err != nil {
		t.Fatalf("cleanup_scheduled error = %v", err)
	}
	var resp struct {
		Success      bool `json:"success"`
		RoomsCleaned int  `json:"roomsCleaned"`
	}
	if err := json.Unmarshal([]byte(raw), &resp); err != nil || !resp.Success {
		t.Fatalf("cleanup_scheduled response = %s (%v)", raw, err)
	}
}

func TestToRuntimeErrorHidesInternalDetails(t *testing.T) {
	err := toRuntimeError(errors.New("pq: connection refused"))
	if err.Code != codeInternal || err.Message != "Internal error" {
		t.Fatalf("toRuntimeError() = %+v", err)
	}
}

func TestExtractUserIDFromToken(t *testing.T) {
	// header.payload.signature with payload {"uid":"user-1"}
	token := "e30.eyJ1aWQiOiJ1c2VyLTEifQ.sig"
	uid, err := extractUserIDFromToken(token)
	if err != nil || uid != "user-1" {
		t.Fatalf("extractUserIDFromToken() = (%q, %v)", uid, err)
	}
	if _, err := extractUserIDFromToken("garbage"); err == nil {
		t.Fatalf("malformed token should fail")
	}
}

type recordingInitializer struct {
	runtime.Initializer
	ids []string
}

func (r *recordingInitializer) RegisterRpc(id string, _ func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error)) error {
	r.ids = append(r.ids, id)
	return nil
}

func TestRegisterRPCs(t *testing.T) {
	rec := &recordingInitializer{}
	if err := RegisterRPCs(rec); err != nil {
		t.Fatalf("RegisterRPCs() error = %v", err)
	}
	if len(rec.ids) != 19 {
		t.Fatalf("registered %d rpcs, want 19: %v", len(rec.ids), rec.ids)
	}
	found := false
	for _, id := range rec.ids {
		if id == RpcCleanupScheduled {
			found = true
		}
	}
	if !found {
		t.Fatalf("%s not registered: %v", RpcCleanupScheduled, rec.ids)
	}
}

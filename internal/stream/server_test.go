package stream

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortexmotion/internal/bus"
	"github.com/normanking/cortexmotion/internal/character"
	"github.com/normanking/cortexmotion/internal/lipsync"
)

type fakeCharacter struct {
	mu      sync.Mutex
	texts   []string
	spoken  []string
	stopped []string
}

func (f *fakeCharacter) HandleText(text string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return strings.ToUpper(text)
}

func (f *fakeCharacter) Speak(text string) *lipsync.Utterance {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	return &lipsync.Utterance{Text: text}
}

func (f *fakeCharacter) StopLipSync() bool { return false }

func (f *fakeCharacter) StopMotion(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, name)
	return true
}

func (f *fakeCharacter) Snapshot() character.Snapshot {
	return character.Snapshot{Tick: 7, State: "idle"}
}

func (f *fakeCharacter) spokenTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.spoken...)
}

func setup(t *testing.T, b *bus.Bus) (*Server, *fakeCharacter, *websocket.Conn) {
	t.Helper()
	char := &fakeCharacter{}
	srv := New(char, b, zerolog.Nop())
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return srv.Clients() == 1 }, time.Second, 5*time.Millisecond)
	return srv, char, conn
}

func read(t *testing.T, conn *websocket.Conn) Outbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var out Outbound
	require.NoError(t, conn.ReadJSON(&out))
	return out
}

func TestServer_TextIsHandledAndAcked(t *testing.T) {
	_, char, conn := setup(t, nil)

	require.NoError(t, conn.WriteJSON(Message{Type: TypeText, Text: "hi [ACTION:idle]"}))
	out := read(t, conn)
	assert.Equal(t, TypeAck, out.Type)
	assert.Equal(t, "HI [ACTION:IDLE]", out.Clean)

	char.mu.Lock()
	assert.Equal(t, []string{"hi [ACTION:idle]"}, char.texts)
	char.mu.Unlock()
}

func TestServer_SpeakAndStop(t *testing.T) {
	_, char, conn := setup(t, nil)

	require.NoError(t, conn.WriteJSON(Message{Type: TypeSpeak, Text: "hello"}))
	assert.Equal(t, TypeAck, read(t, conn).Type)
	assert.Equal(t, []string{"hello"}, char.spokenTexts())

	require.NoError(t, conn.WriteJSON(Message{Type: TypeStopSpeech}))
	out := read(t, conn)
	require.NotNil(t, out.OK)
	assert.False(t, *out.OK)

	require.NoError(t, conn.WriteJSON(Message{Type: TypeStopMotion, Name: "swing"}))
	out = read(t, conn)
	require.NotNil(t, out.OK)
	assert.True(t, *out.OK)
}

func TestServer_SnapshotRequest(t *testing.T) {
	_, _, conn := setup(t, nil)

	require.NoError(t, conn.WriteJSON(Message{Type: TypeSnapshot}))
	out := read(t, conn)
	assert.Equal(t, TypeFrame, out.Type)
	require.NotNil(t, out.Frame)
	assert.Equal(t, uint64(7), out.Frame.Tick)
	assert.Equal(t, "idle", out.Frame.State)
}

func TestServer_UnknownType(t *testing.T) {
	_, _, conn := setup(t, nil)

	require.NoError(t, conn.WriteJSON(Message{Type: "dance"}))
	out := read(t, conn)
	assert.Equal(t, TypeError, out.Type)
	assert.Contains(t, out.Error, "dance")
}

func TestServer_BroadcastSnapshot(t *testing.T) {
	srv, _, conn := setup(t, nil)

	srv.BroadcastSnapshot()
	out := read(t, conn)
	assert.Equal(t, TypeFrame, out.Type)
	require.NotNil(t, out.Frame)
	assert.Equal(t, uint64(7), out.Frame.Tick)
}

func TestServer_ForwardsBusEvents(t *testing.T) {
	b := bus.New()
	defer b.Close()
	_, _, conn := setup(t, b)

	require.NoError(t, b.Publish(bus.NewEvent(bus.EventFlourish).WithName("happy")))
	out := read(t, conn)
	assert.Equal(t, TypeEvent, out.Type)
	require.NotNil(t, out.Event)
	assert.Equal(t, bus.EventFlourish, out.Event.Type)
	assert.Equal(t, "happy", out.Event.Name)
}

func TestServer_CloseDisconnectsClients(t *testing.T) {
	srv, _, conn := setup(t, nil)

	srv.Close()
	assert.Zero(t, srv.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

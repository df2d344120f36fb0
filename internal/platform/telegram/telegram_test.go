package telegram_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/config"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/core"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/nlp/classifier"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/platform"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/platform/telegram"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

const token = "123:abc"

type call struct {
	Method   string
	Params   map[string]any
	FileName string
	Data     []byte
}

// fakeAPI is an in-memory Bot API server.
type fakeAPI struct {
	mu      sync.Mutex
	updates []telegram.Update
	nextID  int64
	calls   []call
	files   map[string][]byte
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	f := &fakeAPI{nextID: 1, files: make(map[string][]byte)}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) push(m telegram.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := m
	f.updates = append(f.updates, telegram.Update{UpdateID: f.nextID, Message: &msg})
	f.nextID++
}

func (f *fakeAPI) sent() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeAPI) texts() []string {
	var out []string
	for _, c := range f.sent() {
		if c.Method == "sendMessage" {
			out = append(out, c.Params["text"].(string))
		}
	}
	return out
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if p, ok := strings.CutPrefix(r.URL.Path, "/file/bot"+token+"/"); ok {
		f.mu.Lock()
		data, found := f.files[p]
		f.mu.Unlock()
		if !found {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
		return
	}
	method, ok := strings.CutPrefix(r.URL.Path, "/bot"+token+"/")
	if !ok {
		writeResult(w, false, nil, "Unauthorized")
		return
	}

	c := call{Method: method, Params: map[string]any{}}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeResult(w, false, nil, err.Error())
			return
		}
		for k, v := range r.MultipartForm.Value {
			c.Params[k] = v[0]
		}
		for _, headers := range r.MultipartForm.File {
			file, _ := headers[0].Open()
			c.Data, _ = io.ReadAll(file)
			c.FileName = headers[0].Filename
			_ = file.Close()
		}
	} else {
		_ = json.NewDecoder(r.Body).Decode(&c.Params)
	}

	switch method {
	case "getUpdates":
		offset := int64(c.Params["offset"].(float64))
		f.mu.Lock()
		var pending []telegram.Update
		for _, u := range f.updates {
			if u.UpdateID >= offset {
				pending = append(pending, u)
			}
		}
		f.mu.Unlock()
		if len(pending) == 0 {
			time.Sleep(10 * time.Millisecond)
		}
		writeResult(w, true, pending, "")
	case "getFile":
		id := c.Params["file_id"].(string)
		writeResult(w, true, telegram.File{FileID: id, FilePath: "documents/" + id}, "")
	default:
		f.mu.Lock()
		f.calls = append(f.calls, c)
		f.mu.Unlock()
		writeResult(w, true, map[string]any{"message_id": 1}, "")
	}
}

func writeResult(w http.ResponseWriter, ok bool, result any, description string) {
	body := map[string]any{"ok": ok}
	if ok {
		body["result"] = result
	} else {
		body["error_code"] = 400
		body["description"] = description
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func reply(text string) core.Body {
	return func(ctx context.Context, s *core.Session) error { return s.Reply(ctx, text) }
}

func newAgent(t *testing.T, baseURL string) (*core.Agent, *telegram.Platform) {
	t.Helper()
	props := config.New()
	props.Set(config.NLPTimezone, "UTC")
	props.Set(config.TelegramToken, token)
	cfg := classifier.DefaultSimpleConfig()
	cfg.EmbeddingDim = 16
	cfg.NumEpochs = 100

	a := core.New("telegram_agent", core.WithProperties(props))
	a.SetDefaultClassifierConfig(cfg)
	p := telegram.Use(a, telegram.WithBaseURL(baseURL), telegram.WithPollWait(0))

	initial, err := a.NewState("initial", core.Initial())
	require.NoError(t, err)
	hello, err := a.NewState("hello_state")
	require.NoError(t, err)
	file, err := a.NewState("file_state")
	require.NoError(t, err)
	helloIntent, err := a.NewIntent("hello_intent", []string{"hello", "hi"})
	require.NoError(t, err)
	byeIntent, err := a.NewIntent("bye_intent", []string{"bye", "goodbye"})
	require.NoError(t, err)

	initial.SetBody(reply("Welcome!"))
	require.NoError(t, initial.WhenIntentMatchedGoTo(helloIntent, hello))
	require.NoError(t, initial.WhenIntentMatchedGoTo(byeIntent, initial))
	require.NoError(t, initial.WhenFileReceivedGoTo(file))
	hello.SetBody(reply("Hi!"))
	file.SetBody(func(ctx context.Context, s *core.Session) error {
		if err := s.Reply(ctx, "Got "+s.File().Name); err != nil {
			return err
		}
		return s.ReplyOptions(ctx, []string{"yes", "no"})
	})
	return a, p
}

func run(t *testing.T, a *core.Agent) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, a.Run(ctx, core.RunOptions{Train: true}))
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		assert.NoError(t, a.Stop(stopCtx))
	})
}

func chat(text string) telegram.Message {
	return telegram.Message{Chat: telegram.Chat{ID: 42, Type: "private"}, Text: text}
}

func waitTexts(t *testing.T, api *fakeAPI, expected ...string) {
	t.Helper()
	require.Eventually(t, func() bool { return len(api.texts()) >= len(expected) }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, expected, api.texts())
}

func TestPlatform_Conversation(t *testing.T) {
	api, srv := newFakeAPI(t)
	a, _ := newAgent(t, srv.URL)
	run(t, a)

	api.push(chat("hello"))
	waitTexts(t, api, "Welcome!", "Hi!")

	for _, c := range api.sent() {
		assert.Equal(t, float64(42), c.Params["chat_id"])
		assert.NotContains(t, c.Params, "parse_mode")
	}
}

func TestPlatform_Reset(t *testing.T) {
	api, srv := newFakeAPI(t)
	a, _ := newAgent(t, srv.URL)
	run(t, a)

	api.push(chat("/start"))
	api.push(chat("hello"))
	api.push(chat(telegram.ResetCommand))
	waitTexts(t, api, "Welcome!", "Hi!", "Welcome!")

	s, err := a.Session("42")
	require.NoError(t, err)
	assert.Equal(t, "initial", s.CurrentState())
}

func TestPlatform_ResetOnFirstContact(t *testing.T) {
	api, srv := newFakeAPI(t)
	a, _ := newAgent(t, srv.URL)
	run(t, a)

	api.push(chat(telegram.ResetCommand))
	api.push(chat("hello"))
	waitTexts(t, api, "Welcome!", "Hi!")
}

func TestPlatform_Document(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.files["documents/doc-1"] = []byte("some notes")
	a, _ := newAgent(t, srv.URL)
	run(t, a)

	m := chat("")
	m.Document = &telegram.Document{FileID: "doc-1", FileName: "notes.txt", MimeType: "text/plain"}
	api.push(m)
	waitTexts(t, api, "Welcome!", "Got notes.txt", telegram.OptionsPrompt)

	keyboard := api.sent()[2].Params["reply_markup"].(map[string]any)["keyboard"]
	assert.Equal(t, []any{
		[]any{map[string]any{"text": "yes"}},
		[]any{map[string]any{"text": "no"}},
	}, keyboard)

	s, err := a.Session("42")
	require.NoError(t, err)
	data, err := s.File().Bytes()
	require.NoError(t, err)
	assert.Equal(t, "some notes", string(data))
	assert.Equal(t, "text/plain", s.File().Type)
}

func TestPlatform_Send(t *testing.T) {
	api, srv := newFakeAPI(t)
	a, p := newAgent(t, srv.URL)
	require.NoError(t, a.Train(context.Background()))
	require.NoError(t, p.Initialize(a))
	ctx := context.Background()

	require.NoError(t, p.Send(ctx, "7", platform.Payload{Action: platform.AgentReplyMarkdown, Message: "*bold*"}))
	require.NoError(t, p.Send(ctx, "7", platform.Payload{Action: platform.AgentReplyHTML, Message: "<b>bold</b>"}))
	require.NoError(t, p.Send(ctx, "7", platform.Payload{Action: platform.AgentReplyLocation, Message: types.Location{Latitude: 41.4, Longitude: 2.2}}))
	require.NoError(t, p.Send(ctx, "7", platform.Payload{
		Action:  platform.AgentReplyDataFrame,
		Message: types.DataFrame{Columns: []string{"city", "temp"}, Rows: [][]any{{"Madrid", 21}}},
	}))
	require.NoError(t, p.Send(ctx, "7", platform.Payload{
		Action:  platform.AgentReplyImage,
		Message: types.NewFileFromBytes("cat.png", "image/png", []byte("png")),
	}))

	calls := api.sent()
	require.Len(t, calls, 5)
	assert.Equal(t, "Markdown", calls[0].Params["parse_mode"])
	assert.Equal(t, "HTML", calls[1].Params["parse_mode"])
	assert.Equal(t, "sendLocation", calls[2].Method)
	assert.Equal(t, 41.4, calls[2].Params["latitude"])
	assert.Equal(t, "sendDocument", calls[3].Method)
	assert.Equal(t, "dataframe.csv", calls[3].FileName)
	assert.Equal(t, "city,temp\nMadrid,21\n", string(calls[3].Data))
	assert.Equal(t, "sendPhoto", calls[4].Method)
	assert.Equal(t, "7", calls[4].Params["chat_id"])
	assert.Equal(t, []byte("png"), calls[4].Data)

	err := p.Send(ctx, "not-a-chat", platform.Payload{Action: platform.AgentReplyStr, Message: "x"})
	assert.Error(t, err)
	err = p.Send(ctx, "7", platform.Payload{Action: platform.UserMessage, Message: "x"})
	assert.ErrorIs(t, err, platform.ErrUnknownAction)
}

func TestPlatform_ReplyOnOtherPlatform(t *testing.T) {
	_, srv := newFakeAPI(t)
	a, p := newAgent(t, srv.URL)
	require.NoError(t, a.Train(context.Background()))
	require.NoError(t, p.Initialize(a))

	s, err := a.GetOrCreateSession(context.Background(), "1", nil)
	require.NoError(t, err)
	err = p.Reply(context.Background(), s, types.NewMessage(types.MessageStr, "x", false))
	assert.ErrorIs(t, err, core.ErrPlatformMismatch)
}

func TestPlatform_InitializeWithoutToken(t *testing.T) {
	a := core.New("no_token")
	p := telegram.New()
	assert.ErrorIs(t, p.Initialize(a), telegram.ErrNoToken)
}

func TestClient_APIError(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := telegram.NewClient(telegram.ClientConfig{Token: "wrong", BaseURL: srv.URL})

	err := c.SendMessage(context.Background(), 1, "hi", "", nil)
	var apiErr *telegram.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "sendMessage", apiErr.Method)
	assert.Equal(t, "Unauthorized", apiErr.Description)
}

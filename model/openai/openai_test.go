package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hupe1980/meetmesh/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ model.Model = (*Model)(nil)

func chunk(content, finish string) string {
	fr := "null"
	if finish != "" {
		fr = fmt.Sprintf("%q", finish)
	}
	return fmt.Sprintf(`data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[{"index":0,"delta":{"content":%q},"finish_reason":%s}]}`+"\n\n", content, fr)
}

func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := openai.NewClient(
		option.WithBaseURL(srv.URL),
		option.WithAPIKey("test"),
		option.WithMaxRetries(0),
	)
	return NewModelFromClient(&client, func(o *Options) { o.Model = "gpt-test" })
}

func TestGenerate_Streaming(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, chunk("机会", ""))
		fmt.Fprint(w, chunk("很大", ""))
		fmt.Fprint(w, chunk("", "stop"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var finals []model.Response
	respCh, errCh := m.Generate(context.Background(), model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Content: "SWOT"}},
	})
	text := ""
	for r := range respCh {
		if r.Partial {
			text += r.Text
			continue
		}
		finals = append(finals, r)
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, "机会很大", text)
	require.Len(t, finals, 1)
	assert.Equal(t, "stop", finals[0].FinishReason)
	assert.Equal(t, "gpt-test", m.Info().Name)
}

func TestGenerate_HTTPError(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid key","type":"auth"}}`)
	})
	_, err := model.Collect(context.Background(), m, model.Request{})
	assert.Error(t, err)
}

func TestBuildMessages(t *testing.T) {
	msgs := buildMessages(model.Request{
		Instructions: "persona",
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "q"},
			{Role: model.RoleAssistant, Content: "a"},
		},
	})
	require.Len(t, msgs, 3)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	assert.NotNil(t, msgs[2].OfAssistant)
}

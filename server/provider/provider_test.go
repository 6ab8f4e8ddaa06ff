package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/chatrelay/config"
	"go.uber.org/zap/zaptest"
	"google.golang.org/genai"
)

func staticKey(key string) CredentialFunc {
	return func() (string, error) { return key, nil }
}

var testParams = Params{Model: "gpt-4o", Temperature: 0.8, MaxTokens: 500}

func TestEnvCredential(t *testing.T) {
	t.Run("literal wins", func(t *testing.T) {
		t.Setenv("CHATRELAY_TEST_KEY", "from-env")
		key, err := EnvCredential("literal", "CHATRELAY_TEST_KEY")()
		require.NoError(t, err)
		assert.Equal(t, "literal", key)
	})

	t.Run("read at call time", func(t *testing.T) {
		t.Setenv("CHATRELAY_TEST_KEY", "")
		cred := EnvCredential("", "CHATRELAY_TEST_KEY")

		_, err := cred()
		assert.ErrorIs(t, err, ErrMissingCredential)
		assert.Contains(t, err.Error(), "CHATRELAY_TEST_KEY is not set")

		t.Setenv("CHATRELAY_TEST_KEY", "rotated")
		key, err := cred()
		require.NoError(t, err)
		assert.Equal(t, "rotated", key)
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := EnvCredential("", "")()
		assert.ErrorIs(t, err, ErrMissingCredential)
	})
}

func TestMessageRelaysOriginalJSON(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantRole    string
		wantContent string
	}{
		{
			name:        "plain message",
			input:       `{"role":"user","content":"hello"}`,
			wantRole:    "user",
			wantContent: "hello",
		},
		{
			name:     "extra keys and structured content",
			input:    `{"role":"user","name":"bob","content":[{"type":"text","text":"hi"}]}`,
			wantRole: "user",
		},
		{
			name:        "non-string role",
			input:       `{"role":5,"content":"x"}`,
			wantContent: "x",
		},
		{
			name:  "not an object",
			input: `"just text"`,
		},
		{
			name:  "null entry",
			input: `null`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msgs []Message
			require.NoError(t, json.Unmarshal([]byte("["+tt.input+"]"), &msgs))
			require.Len(t, msgs, 1)
			assert.Equal(t, tt.wantRole, msgs[0].Role)
			assert.Equal(t, tt.wantContent, msgs[0].Content)

			out, err := json.Marshal(msgs)
			require.NoError(t, err)
			assert.JSONEq(t, "["+tt.input+"]", string(out))
		})
	}

	out, err := json.Marshal(Message{Role: RoleSystem, Content: "persona"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"system","content":"persona"}`, string(out))
}

func TestNew(t *testing.T) {
	logger := zaptest.NewLogger(t)
	base := config.DefaultConfig().LLM

	c, err := New(base, logger)
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, c)

	base.Provider = "gemini"
	c, err = New(base, logger)
	require.NoError(t, err)
	assert.IsType(t, &Gemini{}, c)

	base.Provider = "gollm"
	base.Backend = "anthropic"
	c, err = New(base, logger)
	require.NoError(t, err)
	assert.IsType(t, &Gollm{}, c)

	base.Provider = "carrier-pigeon"
	_, err = New(base, logger)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestParamsFromConfig(t *testing.T) {
	p := ParamsFromConfig(config.DefaultConfig().LLM)
	assert.Equal(t, testParams, p)
}

func TestOpenAIGenerate(t *testing.T) {
	var gotBody map[string]interface{}
	var gotAuth, gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hi there"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI(srv.URL+"/", staticKey("sk-test"), zaptest.NewLogger(t))
	text, err := c.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "persona"},
		{Role: RoleUser, Content: "hello"},
	}, testParams)
	require.NoError(t, err)

	assert.Equal(t, "Hi there", text)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "gpt-4o", gotBody["model"])
	assert.Equal(t, 0.8, gotBody["temperature"])
	assert.Equal(t, float64(500), gotBody["max_tokens"])
	assert.Equal(t, []interface{}{
		map[string]interface{}{"role": "system", "content": "persona"},
		map[string]interface{}{"role": "user", "content": "hello"},
	}, gotBody["messages"])
}

func TestOpenAIGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
		is      error
	}{
		{
			name:    "api error message",
			status:  http.StatusUnauthorized,
			body:    `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`,
			wantErr: "401 Incorrect API key provided",
		},
		{
			name:    "plain body",
			status:  http.StatusBadGateway,
			body:    "upstream exploded",
			wantErr: "502 upstream exploded",
		},
		{
			name:    "empty body",
			status:  http.StatusTooManyRequests,
			wantErr: "429 status code (no body)",
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			is:     ErrNoChoices,
		},
		{
			name:    "malformed success body",
			status:  http.StatusOK,
			body:    `{"choices":`,
			wantErr: "parsing response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOpenAI(srv.URL, staticKey("k"), nil).
				Generate(context.Background(), nil, testParams)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			if tt.wantErr != "" {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestOpenAINullContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":null}}]}`))
	}))
	defer srv.Close()

	text, err := NewOpenAI(srv.URL, staticKey("k"), nil).
		Generate(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, testParams)
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

func TestOpenAIMissingCredential(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := NewOpenAI(srv.URL, EnvCredential("", ""), nil).
		Generate(context.Background(), nil, testParams)
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.False(t, called)
}

func TestOpenAIHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewOpenAI(srv.URL, staticKey("k"), nil).Generate(ctx, nil, testParams)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestToContents(t *testing.T) {
	system, contents := toContents([]Message{
		{Role: RoleSystem, Content: "be helpful"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: "tool", Content: "odd"},
	})

	require.NotNil(t, system)
	require.Len(t, system.Parts, 1)
	assert.Equal(t, "be helpful", system.Parts[0].Text)

	require.Len(t, contents, 3)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, "hi", contents[0].Parts[0].Text)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
	assert.Equal(t, "hello", contents[1].Parts[0].Text)
	assert.Equal(t, genai.RoleUser, contents[2].Role)

	system, contents = toContents(nil)
	assert.Nil(t, system)
	assert.Empty(t, contents)
}

type fakeModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func TestGeminiGenerate(t *testing.T) {
	fake := &fakeModels{
		resp: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{
					Role:  genai.RoleModel,
					Parts: []*genai.Part{{Text: "Bonjour"}},
				},
			}},
		},
	}
	var gotKey string
	g := NewGemini(staticKey("g-key"), zaptest.NewLogger(t)).
		WithFactory(func(ctx context.Context, apiKey string) (ContentGenerator, error) {
			gotKey = apiKey
			return fake, nil
		})

	params := Params{Model: "gemini-2.0-flash", Temperature: 0.5, MaxTokens: 100}
	text, err := g.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "persona"},
		{Role: RoleUser, Content: "hi"},
	}, params)
	require.NoError(t, err)

	assert.Equal(t, "Bonjour", text)
	assert.Equal(t, "g-key", gotKey)
	assert.Equal(t, "gemini-2.0-flash", fake.model)
	require.Len(t, fake.contents, 1)
	require.NotNil(t, fake.config.SystemInstruction)
	assert.Equal(t, "persona", fake.config.SystemInstruction.Parts[0].Text)
	require.NotNil(t, fake.config.Temperature)
	assert.Equal(t, float32(0.5), *fake.config.Temperature)
	assert.Equal(t, int32(100), fake.config.MaxOutputTokens)
}

func TestGeminiGenerateErrors(t *testing.T) {
	boom := errors.New("quota exceeded")

	g := NewGemini(staticKey("k"), nil).
		WithFactory(func(context.Context, string) (ContentGenerator, error) {
			return &fakeModels{err: boom}, nil
		})
	_, err := g.Generate(context.Background(), nil, testParams)
	assert.ErrorIs(t, err, boom)

	g = NewGemini(staticKey("k"), nil).
		WithFactory(func(context.Context, string) (ContentGenerator, error) {
			return &fakeModels{resp: &genai.GenerateContentResponse{}}, nil
		})
	_, err = g.Generate(context.Background(), nil, testParams)
	assert.ErrorIs(t, err, ErrNoChoices)

	g = NewGemini(EnvCredential("", ""), nil)
	_, err = g.Generate(context.Background(), nil, testParams)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestTimeout(t *testing.T) {
	slow := CompleterFunc(func(ctx context.Context, _ []Message, _ Params) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
			return "late", nil
		}
	})

	_, err := Timeout(slow, 20*time.Millisecond).Generate(context.Background(), nil, testParams)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	fast := CompleterFunc(func(ctx context.Context, _ []Message, _ Params) (string, error) {
		_, hasDeadline := ctx.Deadline()
		assert.False(t, hasDeadline)
		return "ok", nil
	})
	text, err := Timeout(fast, 0).Generate(context.Background(), nil, testParams)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name         string
		err          *RelayError
		expectedCode int
		expectedBody string
	}{
		{
			name:         "method not allowed",
			err:          NewMethodNotAllowedError("test-id"),
			expectedCode: http.StatusMethodNotAllowed,
			expectedBody: `{"error":"Method not allowed"}`,
		},
		{
			name:         "provider failure with details",
			err:          Wrap(ProviderError, errors.New("401 Incorrect API key provided")),
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"error":"Something went wrong. Please try again.","details":"401 Incorrect API key provided"}`,
		},
		{
			name:         "failure with empty cause message",
			err:          Wrap(ProviderError, errors.New("")),
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"error":"Something went wrong. Please try again.","details":""}`,
		},
		{
			name:         "internal error without cause",
			err:          NewInternalError("test-id", nil),
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"error":"Something went wrong. Please try again.","details":""}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()

			WriteError(rr, tt.err)

			assert.Equal(t, tt.expectedCode, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.Equal(t, tt.expectedBody, rr.Body.String())
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()

	err := WriteJSON(rr, http.StatusOK, map[string]string{"response": "<b>Rolex & Omega</b>"})
	require.NoError(t, err)

	assert.Equal(t, `{"response":"<b>Rolex & Omega</b>"}`, rr.Body.String())

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decoded))
	assert.Equal(t, "<b>Rolex & Omega</b>", decoded["response"])
}

func TestWriteJSON_Unencodable(t *testing.T) {
	rr := httptest.NewRecorder()

	err := WriteJSON(rr, http.StatusOK, map[string]interface{}{"bad": make(chan int)})
	assert.Error(t, err)
	assert.Empty(t, rr.Body.String())
}

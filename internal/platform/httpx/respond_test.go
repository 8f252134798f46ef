package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	res := httptest.NewRecorder()
	RespondError(res, errors.New("dial tcp 10.0.0.1: connection refused"))

	require.Equal(t, http.StatusInternalServerError, res.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &env))
	require.False(t, env.Success)
	require.Equal(t, "internal error", env.Error)
}

func TestRespondErrorValidation(t *testing.T) {
	res := httptest.NewRecorder()
	RespondError(res, fmt.Errorf("%w: order id required", ErrValidation))

	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Contains(t, res.Body.String(), "order id required")
}

func TestOKEnvelope(t *testing.T) {
	res := httptest.NewRecorder()
	OK(res, map[string]int{"count": 2})

	var env struct {
		Success bool           `json:"success"`
		Data    map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &env))
	require.True(t, env.Success)
	require.Equal(t, 2, env.Data["count"])
}

func TestDecodeJSONMalformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	var target map[string]any
	err := DecodeJSON(req, &target)
	require.ErrorIs(t, err, ErrValidation)
}

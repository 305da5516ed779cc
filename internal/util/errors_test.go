package util

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitedError_Display(t *testing.T) {
	err := &RateLimitedError{Remaining: 4*time.Minute + 59*time.Second + 900*time.Millisecond}
	assert.Equal(t, 4, err.Minutes())
	assert.Equal(t, 59, err.Seconds())

	err = &RateLimitedError{Remaining: 60 * time.Second}
	assert.Equal(t, 1, err.Minutes())
	assert.Equal(t, 0, err.Seconds())

	wrapped := fmt.Errorf("submit: %w", err)
	rl, ok := AsRateLimited(wrapped)
	require.True(t, ok)
	assert.Equal(t, 60*time.Second, rl.Remaining)
}

func TestHandleError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: 0 is not positive", ErrInvalidStepCount), http.StatusBadRequest},
		{ErrInvalidDate, http.StatusBadRequest},
		{ErrMissingEvidence, http.StatusBadRequest},
		{ErrInvalidImage, http.StatusBadRequest},
		{ErrInvalidRegistration, http.StatusBadRequest},
		{ErrTooLarge, http.StatusRequestEntityTooLarge},
		{ErrNotFound, http.StatusNotFound},
		{ErrConfirmationNotFound, http.StatusNotFound},
		{ErrPermissionDenied, http.StatusForbidden},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrUserNameTaken, http.StatusConflict},
		{ErrInvalidTransition, http.StatusConflict},
		{ErrStoreWriteFailed, http.StatusInternalServerError},
		{&RateLimitedError{Remaining: time.Minute}, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			HandleError(c, tt.err)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestHandleError_RateLimitedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HandleError(c, &RateLimitedError{Remaining: 61 * time.Second})

	var body struct {
		Code int             `json:"code"`
		Data RateLimitedData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusTooManyRequests, body.Code)
	assert.Equal(t, RateLimitedData{WaitMinutes: 1, WaitSeconds: 1}, body.Data)
}

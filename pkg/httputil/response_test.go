package httputil

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/pkg/errors"
)

func TestStatusFor(t *testing.T) {
	cases := map[errors.Kind]int{
		errors.KindValidation:           http.StatusBadRequest,
		errors.KindInvalidDate:          http.StatusBadRequest,
		errors.KindUnauthorized:         http.StatusUnauthorized,
		errors.KindForbidden:            http.StatusForbidden,
		errors.KindNotFound:             http.StatusNotFound,
		errors.KindInvalidTransition:    http.StatusConflict,
		errors.KindResourceConflict:     http.StatusConflict,
		errors.KindSequenceViolation:    http.StatusConflict,
		errors.KindNoResourceAvailable:  http.StatusConflict,
		errors.KindReferentialIntegrity: http.StatusConflict,
		errors.KindStorageFailure:       http.StatusInternalServerError,
		errors.KindInternal:             http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, StatusFor(kind), string(kind))
	}
}

func respond(err error) (*httptest.ResponseRecorder, Response) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	RespondWithError(c, err)

	var resp Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestRespondWithErrorExposesDomainErrors(t *testing.T) {
	w, resp := respond(errors.SequenceViolation("too early").With("slot", "2026-03-09 09:00 AM"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, errors.KindSequenceViolation, resp.Error.Kind)
	assert.Equal(t, "too early", resp.Error.Message)
	assert.Equal(t, "2026-03-09 09:00 AM", resp.Error.Details["slot"])
}

func TestRespondWithErrorHidesStorageFailures(t *testing.T) {
	w, resp := respond(stderrors.New("pq: password authentication failed"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, errors.KindStorageFailure, resp.Error.Kind)
	assert.Equal(t, "internal server error", resp.Error.Message)
	assert.NotContains(t, w.Body.String(), "password")
}

package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsDistinctKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		typ    string
	}{
		{fmt.Errorf("%w: article", ErrNotFound), http.StatusNotFound, TypeNotFound},
		{fmt.Errorf("%w: article is not in review", ErrInvalidTransition), http.StatusUnprocessableEntity, TypeInvalidTransition},
		{ErrForbidden, http.StatusForbidden, TypeForbidden},
		{ErrUnauthorized, http.StatusUnauthorized, TypeUnauthorized},
		{fmt.Errorf("%w: title required", ErrValidation), http.StatusBadRequest, TypeValidation},
		{ErrConflict, http.StatusConflict, TypeConflict},
		{ErrDuplicate, http.StatusConflict, TypeDuplicate},
		{errors.New("boom"), http.StatusInternalServerError, TypeInternal},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		require.Equal(t, tc.status, rr.Code, tc.err.Error())

		var problem ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
		require.Equal(t, tc.typ, problem.Type)
		require.Equal(t, tc.status, problem.Status)
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("dial tcp 10.0.0.1:5432: refused"))
	if strings.Contains(rr.Body.String(), "10.0.0.1") {
		t.Fatalf("internal error leaked: %s", rr.Body.String())
	}
}

func TestTranslatePgError(t *testing.T) {
	require.ErrorIs(t, TranslatePgError(pgx.ErrNoRows), ErrNotFound)

	dup := &pgconn.PgError{Code: "23505", ConstraintName: "articles_slug_key"}
	err := TranslatePgError(fmt.Errorf("insert: %w", dup))
	require.ErrorIs(t, err, ErrDuplicate)
	require.Contains(t, err.Error(), "articles_slug_key")
	require.True(t, IsUniqueViolation(dup))

	other := errors.New("other")
	require.Equal(t, other, TranslatePgError(other))
	require.NoError(t, TranslatePgError(nil))
}

func TestBinderRejectsUnknownFieldsAndValidates(t *testing.T) {
	type payload struct {
		Email string `json:"email" validate:"required,email"`
	}
	b := NewBinder()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"x@y.z","extra":1}`))
	require.ErrorIs(t, b.Bind(req, &payload{}), ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope"}`))
	err := b.Bind(req, &payload{})
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "Email failed on email")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co"}`))
	var ok payload
	require.NoError(t, b.Bind(req, &ok))
	require.Equal(t, "a@b.co", ok.Email)
}

package bpipe_test

import (
	"net/http"
	"testing"

	"github.com/advdv/bpipe"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestErrorCode(t *testing.T) {
	err1 := bpipe.NewError(bpipe.CodeBadRequest, errors.New("foo"))
	require.Equal(t, bpipe.Code(400), err1.Code())
	require.Equal(t, bpipe.CodeBadRequest, bpipe.CodeOf(err1))
	require.Equal(t, "Bad Request: foo", err1.Error())

	require.Equal(t, bpipe.CodeUnknown, bpipe.CodeOf(errors.New("bar")))
	require.Equal(t, "Unknown: rab", bpipe.NewError(900, errors.New("rab")).Error())
}

func TestErrorCodeSurvivesWrapping(t *testing.T) {
	err := errors.Wrap(bpipe.Errorf(bpipe.CodeServiceUnavailable, "upstream %s down", "b"), "stage a")
	require.Equal(t, bpipe.CodeServiceUnavailable, bpipe.CodeOf(err))
	require.Equal(t, "stage a: Service Unavailable: upstream b down", err.Error())
}

func TestStatusOf(t *testing.T) {
	for _, tt := range []struct {
		name string
		err  error
		want int
	}{
		{"coded client error", bpipe.NewError(bpipe.CodeNotFound, errors.New("x")), http.StatusNotFound},
		{"coded server error", bpipe.NewError(bpipe.CodeBadGateway, errors.New("x")), http.StatusBadGateway},
		{"uncoded", errors.New("x"), http.StatusInternalServerError},
		{"protocol violation", bpipe.ErrProtocolViolation, http.StatusInternalServerError},
		{"out of range code", bpipe.NewError(302, errors.New("x")), http.StatusInternalServerError},
	} {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, bpipe.StatusOf(tt.err))
		})
	}
}

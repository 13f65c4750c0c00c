package rpc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/subflow/subscription-service/internal/rpc/verifypb"
)

type fakeUserStore struct {
	users map[string]bool
	err   error
}

func (s *fakeUserStore) ExistsByUsername(_ context.Context, username string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.users[username], nil
}

func TestVerifyUserExists(t *testing.T) {
	srv := NewVerificationServer(&fakeUserStore{users: map[string]bool{"known_user": true}}, nil)

	resp, err := srv.VerifyUser(context.Background(), &verifypb.VerifyUserRequest{Username: "known_user"})
	require.NoError(t, err)
	assert.True(t, resp.GetExists())
}

func TestVerifyUserAbsentIsNotAnError(t *testing.T) {
	srv := NewVerificationServer(&fakeUserStore{users: map[string]bool{"known_user": true}}, nil)

	resp, err := srv.VerifyUser(context.Background(), &verifypb.VerifyUserRequest{Username: "nobody"})
	require.NoError(t, err)
	assert.False(t, resp.GetExists())
}

func TestVerifyUserEmptyUsername(t *testing.T) {
	srv := NewVerificationServer(&fakeUserStore{}, nil)

	_, err := srv.VerifyUser(context.Background(), &verifypb.VerifyUserRequest{})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestVerifyUserStoreFailure(t *testing.T) {
	srv := NewVerificationServer(&fakeUserStore{err: errors.New("db down")}, nil)

	_, err := srv.VerifyUser(context.Background(), &verifypb.VerifyUserRequest{Username: "known_user"})
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
}

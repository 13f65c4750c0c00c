// Package rpc serves the user-verification endpoint peer services call to
// check whether an identity exists.  It listens on its own port,
// independent of the HTTP API, and trusts the internal network at the
// transport layer.
package rpc

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/subflow/subscription-service/internal/rpc/verifypb"
)

// UserStore answers existence lookups.  Implemented by repository.UserRepo.
type UserStore interface {
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// VerificationServer implements verifypb.UserVerificationServer.
type VerificationServer struct {
	users  UserStore
	logger *zap.Logger
}

// NewVerificationServer builds the service implementation.  A nil logger
// is replaced with a no-op logger.
func NewVerificationServer(users UserStore, logger *zap.Logger) *VerificationServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationServer{
		users:  users,
		logger: logger.With(zap.String("component", "verification-rpc")),
	}
}

// VerifyUser reports whether a user with the given username exists.  A
// user that does not exist is a valid answer, not an error; the response
// never includes any field of the user beyond existence.
func (s *VerificationServer) VerifyUser(ctx context.Context, req *verifypb.VerifyUserRequest) (*verifypb.VerifyUserResponse, error) {
	if req.GetUsername() == "" {
		return nil, status.Error(codes.InvalidArgument, "username is required")
	}

	exists, err := s.users.ExistsByUsername(ctx, req.GetUsername())
	if err != nil {
		s.logger.Error("user existence lookup failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to verify user")
	}

	return &verifypb.VerifyUserResponse{Exists: exists}, nil
}

// NewServer returns a gRPC server with the verification service
// registered.  The caller owns the listener and its lifecycle.
func NewServer(users UserStore, logger *zap.Logger) *grpc.Server {
	s := grpc.NewServer()
	verifypb.RegisterUserVerificationServer(s, NewVerificationServer(users, logger))
	return s
}

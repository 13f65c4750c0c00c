// Package verifypb holds the wire types and gRPC bindings for
// verify.proto.  The bindings are checked in and hand-maintained in the
// shape protoc-gen-go emits, so building the module does not require a
// protoc toolchain; regenerate or extend them alongside verify.proto.
package verifypb

import (
	context "context"
	fmt "fmt"

	grpc "google.golang.org/grpc"
)

// VerifyUserRequest asks whether a user with the given username exists.
type VerifyUserRequest struct {
	Username string `protobuf:"bytes,1,opt,name=username,proto3" json:"username,omitempty"`
}

func (m *VerifyUserRequest) Reset()         { *m = VerifyUserRequest{} }
func (m *VerifyUserRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*VerifyUserRequest) ProtoMessage()    {}

func (m *VerifyUserRequest) GetUsername() string {
	if m != nil {
		return m.Username
	}
	return ""
}

// VerifyUserResponse carries only the existence bit.
type VerifyUserResponse struct {
	Exists bool `protobuf:"varint,1,opt,name=exists,proto3" json:"exists,omitempty"`
}

func (m *VerifyUserResponse) Reset()         { *m = VerifyUserResponse{} }
func (m *VerifyUserResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*VerifyUserResponse) ProtoMessage()    {}

func (m *VerifyUserResponse) GetExists() bool {
	if m != nil {
		return m.Exists
	}
	return false
}

const userVerificationVerifyUserMethod = "/verify.v1.UserVerification/VerifyUser"

// UserVerificationClient is the client API for the UserVerification service.
type UserVerificationClient interface {
	VerifyUser(ctx context.Context, in *VerifyUserRequest, opts ...grpc.CallOption) (*VerifyUserResponse, error)
}

type userVerificationClient struct {
	cc grpc.ClientConnInterface
}

func NewUserVerificationClient(cc grpc.ClientConnInterface) UserVerificationClient {
	return &userVerificationClient{cc}
}

func (c *userVerificationClient) VerifyUser(ctx context.Context, in *VerifyUserRequest, opts ...grpc.CallOption) (*VerifyUserResponse, error) {
	out := new(VerifyUserResponse)
	if err := c.cc.Invoke(ctx, userVerificationVerifyUserMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// UserVerificationServer is the server API for the UserVerification service.
type UserVerificationServer interface {
	VerifyUser(context.Context, *VerifyUserRequest) (*VerifyUserResponse, error)
}

// RegisterUserVerificationServer registers the service implementation with
// a gRPC server.
func RegisterUserVerificationServer(s grpc.ServiceRegistrar, srv UserVerificationServer) {
	s.RegisterService(&userVerificationServiceDesc, srv)
}

func _UserVerification_VerifyUser_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(VerifyUserRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UserVerificationServer).VerifyUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: userVerificationVerifyUserMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(UserVerificationServer).VerifyUser(ctx, req.(*VerifyUserRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var userVerificationServiceDesc = grpc.ServiceDesc{
	ServiceName: "verify.v1.UserVerification",
	HandlerType: (*UserVerificationServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "VerifyUser",
			Handler:    _UserVerification_VerifyUser_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "verify.proto",
}

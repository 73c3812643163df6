package servers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"

	"github.com/TypeTerrors/rsum/internal/store"
	"github.com/TypeTerrors/rsum/pkg/rsum"
	"github.com/charmbracelet/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "rsum.HashService"

// MaxMessageSize bounds gRPC messages in both directions. It fits a
// ChecksumRequest carrying rsum.MaxLen bytes plus its field tag and length
// prefix.
var MaxMessageSize = int(min(int64(rsum.MaxLen)+messageOverhead, math.MaxInt))

const messageOverhead = 16

// HashServiceServer is the server API of the hash service.
type HashServiceServer interface {
	Checksum(context.Context, *ChecksumRequest) (*ChecksumResponse, error)
	GetFile(context.Context, *FileRequest) (*FileResponse, error)
	ListFiles(context.Context, *ListRequest) (*ListResponse, error)
}

type Grpc struct {
	grpcServer *grpc.Server
	store      *store.Store
	listener   net.Listener
}

// Listen opens the TCP listener for the given port.
func Listen(port string) (net.Listener, error) {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %s: %w", port, err)
	}
	return listener, nil
}

func NewGrpc(s *store.Store, listener net.Listener) *Grpc {
	g := &Grpc{
		grpcServer: grpc.NewServer(
			grpc.MaxRecvMsgSize(MaxMessageSize),
			grpc.MaxSendMsgSize(MaxMessageSize),
		),
		store:      s,
		listener:   listener,
	}
	RegisterHashServiceServer(g.grpcServer, g)
	return g
}

// Serve blocks until Stop is called or the listener fails.
func (g *Grpc) Serve() error {
	log.Infof("Starting gRPC server on %s...", g.listener.Addr())
	if err := g.grpcServer.Serve(g.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("failed to serve gRPC server: %w", err)
	}
	return nil
}

// Stop gracefully stops the gRPC server
func (g *Grpc) Stop() {
	g.grpcServer.GracefulStop()
	log.Info("gRPC server stopped gracefully.")
}

func (g *Grpc) Checksum(ctx context.Context, req *ChecksumRequest) (*ChecksumResponse, error) {
	d, err := rsum.Sum(req.Data)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ChecksumResponse{Digest: d}, nil
}

func (g *Grpc) GetFile(ctx context.Context, req *FileRequest) (*FileResponse, error) {
	fh, err := g.store.Get(req.Path)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Errorf("Failed to get hashes for %s: %v", req.Path, err)
		}
		return nil, toStatus(err)
	}
	return &FileResponse{Hashes: fh}, nil
}

// toStatus maps domain errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rsum.ErrInputTooLarge):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func (g *Grpc) ListFiles(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	return &ListResponse{Paths: g.store.List()}, nil
}

func RegisterHashServiceServer(s grpc.ServiceRegistrar, srv HashServiceServer) {
	s.RegisterService(&hashServiceDesc, srv)
}

var hashServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HashServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Checksum",
			Handler: unaryHandler("Checksum", func(srv HashServiceServer, ctx context.Context, req *ChecksumRequest) (interface{}, error) {
				return srv.Checksum(ctx, req)
			}),
		},
		{
			MethodName: "GetFile",
			Handler: unaryHandler("GetFile", func(srv HashServiceServer, ctx context.Context, req *FileRequest) (interface{}, error) {
				return srv.GetFile(ctx, req)
			}),
		},
		{
			MethodName: "ListFiles",
			Handler: unaryHandler("ListFiles", func(srv HashServiceServer, ctx context.Context, req *ListRequest) (interface{}, error) {
				return srv.ListFiles(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rsum.proto",
}

// unaryHandler builds the MethodDesc handler that decodes Req and calls fn
// through the interceptor chain.
func unaryHandler[Req any, PReq interface {
	*Req
	message
}](method string, fn func(HashServiceServer, context.Context, PReq) (interface{}, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := FullMethod(method)
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(srv.(HashServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return fn(srv.(HashServiceServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// FullMethod returns the gRPC method path for a hash service method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

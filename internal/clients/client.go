package clients

import (
	"context"
	"fmt"

	"github.com/TypeTerrors/rsum/internal/servers"
	"github.com/TypeTerrors/rsum/internal/store"
	"github.com/TypeTerrors/rsum/pkg/rsum"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client talks to the hash service of an rsum daemon.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client for the daemon at addr. Extra options are appended to
// the defaults.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.CallContentSubtype(servers.CodecName),
			grpc.MaxCallSendMsgSize(servers.MaxMessageSize),
			grpc.MaxCallRecvMsgSize(servers.MaxMessageSize),
		),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gRPC server at %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Checksum asks the daemon for the rsum of data.
func (c *Client) Checksum(ctx context.Context, data []byte) (rsum.Digest, error) {
	var resp servers.ChecksumResponse
	if err := c.conn.Invoke(ctx, servers.FullMethod("Checksum"), &servers.ChecksumRequest{Data: data}, &resp); err != nil {
		return rsum.Digest{}, err
	}
	return resp.Digest, nil
}

// GetFile fetches the stored hashes of path, relative to the daemon's folder.
func (c *Client) GetFile(ctx context.Context, path string) (store.FileHashes, error) {
	var resp servers.FileResponse
	if err := c.conn.Invoke(ctx, servers.FullMethod("GetFile"), &servers.FileRequest{Path: path}, &resp); err != nil {
		return store.FileHashes{}, err
	}
	return resp.Hashes, nil
}

func (c *Client) ListFiles(ctx context.Context) ([]string, error) {
	var resp servers.ListResponse
	if err := c.conn.Invoke(ctx, servers.FullMethod("ListFiles"), &servers.ListRequest{}, &resp); err != nil {
		return nil, err
	}
	return resp.Paths, nil
}

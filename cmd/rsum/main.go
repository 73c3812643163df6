package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/TypeTerrors/rsum/internal/blocks"
	"github.com/TypeTerrors/rsum/internal/clients"
	"github.com/TypeTerrors/rsum/pkg/rsum"
	"github.com/charmbracelet/log"
)

func main() {
	blockSize := flag.Int("block", 0, "Print one digest per block of this many bytes")
	remote := flag.String("remote", "", "Compute on the rsum daemon at host:port")
	peers := flag.Bool("peers", false, "List rsum daemons announced over mDNS and exit")
	timeout := flag.Duration("timeout", 3*time.Second, "Timeout for -remote and -peers")
	flag.Parse()

	ctx := context.Background()

	if *peers {
		found, err := clients.Browse(ctx, *timeout)
		if err != nil {
			log.Fatalf("Failed to browse peers: %v", err)
		}
		for _, p := range found {
			fmt.Printf("%s\t%s\n", p.Addr, p.Instance)
		}
		return
	}

	names := flag.Args()
	if len(names) == 0 {
		names = []string{"-"}
	}

	for _, name := range names {
		if *blockSize > 0 {
			if err := blocksOf(os.Stdout, name, *blockSize); err != nil {
				log.Fatalf("Failed to hash blocks of %s: %v", name, err)
			}
			continue
		}

		data, err := readInput(name)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", name, err)
		}

		var d rsum.Digest
		if *remote != "" {
			d, err = remoteSum(ctx, *remote, data, *timeout)
		} else {
			d, err = rsum.Sum(data)
		}
		if err != nil {
			log.Fatalf("Failed to checksum %s: %v", name, err)
		}
		fmt.Printf("%s  %s\n", d, name)
	}
}

func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

type chunkSource interface {
	ReadChunk(offset, chunkSize int64) ([]byte, error)
}

// memChunks serves stdin, which cannot be read at an offset.
type memChunks []byte

func (m memChunks) ReadChunk(offset, chunkSize int64) ([]byte, error) {
	if offset >= int64(len(m)) {
		return nil, nil
	}
	return m[offset:min(offset+chunkSize, int64(len(m)))], nil
}

// blocksOf prints the per-block digests of a file, reading one block at a
// time.
func blocksOf(w io.Writer, name string, blockSize int) error {
	if name == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		return printBlocks(w, name, memChunks(data), blockSize)
	}

	cr, err := blocks.NewChunkReader(name)
	if err != nil {
		return err
	}
	defer cr.Close()
	return printBlocks(w, name, cr, blockSize)
}

func printBlocks(w io.Writer, name string, src chunkSource, blockSize int) error {
	h := blocks.Hasher{BlockSize: blockSize, PadLastBlock: true}
	for index, offset := int64(0), int64(0); ; index, offset = index+1, offset+int64(blockSize) {
		data, err := src.ReadChunk(offset, int64(blockSize))
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return nil
		}
		b := h.HashBlock(index, offset, data)
		fmt.Fprintf(w, "%s  %s  %d+%d\n", b.Weak, name, b.Offset, b.Length)
	}
}

func remoteSum(ctx context.Context, addr string, data []byte, timeout time.Duration) (rsum.Digest, error) {
	c, err := clients.Dial(addr)
	if err != nil {
		return rsum.Digest{}, err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Checksum(ctx, data)
}

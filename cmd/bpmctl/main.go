// Command bpmctl is a small scratchpad for exercising the buffer pool
// manager against a real file. It is not part of the core buffer pool
// contract.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/bsnyl5/bufferpool/bufferpool"
	"github.com/bsnyl5/bufferpool/diskio"
	"github.com/bsnyl5/bufferpool/replacer"
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: bpmctl <new|stat> <file>")
		os.Exit(2)
	}

	cmd, path := args[0], args[1]
	dm, err := diskio.NewFileDiskManager(path)
	if err != nil {
		slog.Error("open disk file", "path", path, "error", err)
		os.Exit(1)
	}

	bpm := bufferpool.NewBufferPoolManager(16, dm, 2, nil)
	defer bpm.Shutdown()

	switch cmd {
	case "new":
		pageID := bpm.NewPage()
		fmt.Println(pageID)
	case "stat":
		fmt.Printf("frames=%d\n", bpm.Size())
		guard := bpm.ReadPage(context.Background(), 0, replacer.AccessUnknown)
		defer guard.Drop()
		fmt.Printf("page 0 pin_count=%v\n", mustPinCount(bpm, 0))
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		os.Exit(2)
	}
}

func mustPinCount(bpm *bufferpool.BufferPoolManager, pageID int) int64 {
	count, ok := bpm.GetPinCount(pageID)
	if !ok {
		return -1
	}
	return count
}

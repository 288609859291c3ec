// Command gen-stream serves a synthetic SBGGR10 frame stream over TCP so
// the receiver can be exercised without the capture board.
//
// Usage:
//
//	go run ./cmd/tools/gen-stream [flags]
//
// Flags:
//
//	-listen  Listen address (default :8888)
//	-width   Frame width in pixels
//	-height  Frame height in pixels
//	-fps     Frames per second to pace at (0 = unpaced)
//	-n       Frames per connection (0 = until the client disconnects)
//	-o       Instead of serving, write a single frame to this file and exit
package main

import (
	"flag"
	"log"
	"net"
	"os"
	"time"

	"github.com/polarisvision/camlink/internal/camera"
)

func main() {
	listen := flag.String("listen", ":8888", "listen address")
	width := flag.Uint("width", 1920, "frame width")
	height := flag.Uint("height", 1080, "frame height")
	fps := flag.Float64("fps", 30, "frames per second (0 = unpaced)")
	count := flag.Int("n", 0, "frames per connection (0 = unlimited)")
	output := flag.String("o", "", "write one frame to this file and exit")
	flag.Parse()

	src, err := camera.NewSyntheticSource(uint32(*width), uint32(*height))
	if err != nil {
		log.Fatalf("bad frame geometry: %v", err)
	}

	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("failed to create output: %v", err)
		}
		defer f.Close()
		if err := src.WriteFrame(f, uint64(time.Now().UnixNano())); err != nil {
			log.Fatalf("failed to write frame: %v", err)
		}
		log.Printf("wrote one %dx%d frame to %s", *width, *height, *output)
		return
	}

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}
	log.Printf("serving %dx%d synthetic frames on %s", *width, *height, *listen)

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Fatalf("accept failed: %v", err)
		}
		go serve(conn, *width, *height, *fps, *count)
	}
}

func serve(conn net.Conn, width, height uint, fps float64, count int) {
	defer conn.Close()
	log.Printf("client connected: %s", conn.RemoteAddr())

	// each connection gets its own source so frame ids restart at zero
	src, err := camera.NewSyntheticSource(uint32(width), uint32(height))
	if err != nil {
		log.Printf("bad frame geometry: %v", err)
		return
	}

	var interval time.Duration
	if fps > 0 {
		interval = time.Duration(float64(time.Second) / fps)
	}

	sent := 0
	for count == 0 || sent < count {
		start := time.Now()
		if err := src.WriteFrame(conn, uint64(start.UnixNano())); err != nil {
			log.Printf("client %s gone after %d frames: %v", conn.RemoteAddr(), sent, err)
			return
		}
		sent++
		if interval > 0 {
			if sleep := interval - time.Since(start); sleep > 0 {
				time.Sleep(sleep)
			}
		}
	}
	log.Printf("sent %d frames to %s", sent, conn.RemoteAddr())
}

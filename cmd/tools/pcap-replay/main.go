// Command pcap-replay re-serves a captured camera stream over TCP.
//
// It reads a pcap file, extracts the TCP payload bytes sent by the camera
// server on the capture port, and replays them to the first client that
// connects, pacing by the original capture timestamps. The capture is
// assumed to be in order and free of retransmits, which holds for the
// loopback and lab captures this tool is used with.
//
// Usage:
//
//	go run ./cmd/tools/pcap-replay -pcap capture.pcap [flags]
//
// Flags:
//
//	-pcap    Path to the pcap file (required)
//	-port    Camera server port in the capture (default 8888)
//	-listen  Listen address to re-serve on (default :8888)
//	-rate    Pacing multiplier, 2.0 replays twice as fast (0 = unpaced)
package main

import (
	"flag"
	"io"
	"log"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

type chunk struct {
	data []byte
	ts   time.Time
}

func main() {
	pcapFile := flag.String("pcap", "", "path to pcap file (required)")
	port := flag.Int("port", 8888, "camera server port in the capture")
	listen := flag.String("listen", ":8888", "listen address")
	rate := flag.Float64("rate", 1.0, "pacing multiplier (0 = unpaced)")
	flag.Parse()

	if *pcapFile == "" {
		log.Fatal("Error: -pcap flag is required")
	}

	chunks, total, err := loadChunks(*pcapFile, *port)
	if err != nil {
		log.Fatalf("failed to read capture: %v", err)
	}
	if len(chunks) == 0 {
		log.Fatalf("no TCP payload from port %d found in %s", *port, *pcapFile)
	}
	span := chunks[len(chunks)-1].ts.Sub(chunks[0].ts)
	log.Printf("loaded %d segments, %d bytes, %.2fs of capture", len(chunks), total, span.Seconds())

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}
	log.Printf("replaying on %s", *listen)

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Fatalf("accept failed: %v", err)
		}
		replay(conn, chunks, *rate)
	}
}

// loadChunks collects the server-to-client payload stream from the capture.
func loadChunks(path string, port int) ([]chunk, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return nil, 0, err
	}

	var chunks []chunk
	total := 0
	for {
		data, ci, err := r.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}

		packet := gopacket.NewPacket(data, r.LinkType(), gopacket.Default)
		tcpLayer := packet.Layer(layers.LayerTypeTCP)
		if tcpLayer == nil {
			continue
		}
		tcp, ok := tcpLayer.(*layers.TCP)
		if !ok || int(tcp.SrcPort) != port || len(tcp.Payload) == 0 {
			continue
		}

		payload := make([]byte, len(tcp.Payload))
		copy(payload, tcp.Payload)
		chunks = append(chunks, chunk{data: payload, ts: ci.Timestamp})
		total += len(payload)
	}
	return chunks, total, nil
}

func replay(conn net.Conn, chunks []chunk, rate float64) {
	defer conn.Close()
	log.Printf("client connected: %s", conn.RemoteAddr())

	start := time.Now()
	base := chunks[0].ts
	for i, c := range chunks {
		if rate > 0 {
			due := start.Add(time.Duration(float64(c.ts.Sub(base)) / rate))
			if sleep := time.Until(due); sleep > 0 {
				time.Sleep(sleep)
			}
		}
		if _, err := conn.Write(c.data); err != nil {
			log.Printf("client %s gone after %d/%d segments: %v", conn.RemoteAddr(), i, len(chunks), err)
			return
		}
	}
	log.Printf("replay complete: %d segments to %s", len(chunks), conn.RemoteAddr())
}

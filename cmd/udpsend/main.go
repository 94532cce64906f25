package main

import (
	"flag"
	"math"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/squadracorsepolito/acmeflow/internal"
	"github.com/squadracorsepolito/acmeflow/udp"
)

func main() {
	addrFlag := flag.String("addr", "127.0.0.1:20000", "address of the UDP source")
	rate := flag.Float64("rate", 16_000, "sample rate")
	frequency := flag.Float64("frequency", 440, "frequency of the tone")
	chunk := flag.Int("chunk", 320, "samples per datagram")
	utterance := flag.Duration("utterance", 2*time.Second, "length of every utterance")
	pause := flag.Duration("pause", time.Second, "silence between utterances")
	count := flag.Int("utterances", 3, "number of utterances to send")
	flag.Parse()

	logger := internal.NewLogger("cmd", "udpsend")

	addrPort, err := netip.ParseAddrPort(*addrFlag)
	if err != nil {
		logger.Error("invalid address", err)
		os.Exit(1)
	}

	conn, err := net.DialUDP("udp", nil, net.UDPAddrFromAddrPort(addrPort))
	if err != nil {
		logger.Error("failed to dial", err)
		os.Exit(1)
	}
	defer conn.Close()

	chunkDuration := time.Duration(float64(*chunk) / *rate * float64(time.Second))
	chunksPerUtterance := int(*utterance / chunkDuration)

	step := 2 * math.Pi * *frequency / *rate

	sampleIndex := 0
	samples := make([]float32, *chunk)

	t1 := time.Now()
	sent := 0

	for u := range *count {
		for range chunksPerUtterance {
			for i := range samples {
				samples[i] = float32(0.5 * math.Sin(step*float64(sampleIndex+i)))
			}
			sampleIndex += len(samples)

			if _, err := conn.Write(udp.EncodePCM(samples)); err != nil {
				logger.Error("failed to send", err)
				os.Exit(1)
			}
			sent++

			time.Sleep(chunkDuration)
		}

		logger.Info("utterance sent", "utterance", u, "chunks", chunksPerUtterance)
		time.Sleep(*pause)
	}

	elapsed := time.Since(t1)
	logger.Info("done", "datagrams", sent, "datagrams_per_sec", float64(sent)/elapsed.Seconds())
}

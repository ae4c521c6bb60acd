// rtpprobe: stream a G.711 test tone to an RTP endpoint at wire pace.
// Point it at a SIP call's media port to exercise the RTP ingest path
// without a softphone.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/crosstalk-ai/crosstalk/pkg/audioio"
	"github.com/crosstalk-ai/crosstalk/pkg/codec"
	"github.com/crosstalk-ai/crosstalk/pkg/rtpio"
)

var (
	addr     = flag.String("addr", "", "target host:port (required)")
	law      = flag.String("codec", "pcmu", "payload codec: pcmu or pcma")
	freq     = flag.Float64("freq", 440, "tone frequency in Hz")
	amp      = flag.Float64("amp", 0.3, "tone amplitude, 0..1")
	duration = flag.Duration("dur", 5*time.Second, "how long to send")
)

const frameDuration = 20 * time.Millisecond

func main() {
	flag.Parse()
	if *addr == "" {
		fmt.Fprintln(os.Stderr, "rtpprobe: -addr is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "rtpprobe:", err)
		os.Exit(1)
	}
}

func run() error {
	var pt uint8
	var encode func([]byte) ([]byte, error)
	switch *law {
	case "pcmu":
		pt = rtpio.PayloadTypePCMU
		encode = codec.PCM16ToULaw
	case "pcma":
		pt = rtpio.PayloadTypePCMA
		encode = codec.PCM16ToALaw
	default:
		return fmt.Errorf("unknown codec %q", *law)
	}

	conn, err := net.Dial("udp", *addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	sess := rtpio.NewSession(rtpio.SessionConfig{PayloadType: pt})
	tone := audioio.NewToneGenerator(audioio.TelephonyFormat(), *freq, *amp)

	frames := int(*duration / frameDuration)
	fmt.Printf("sending %s %s tone to %s: %d frames, ssrc %08x\n",
		*duration, *law, *addr, frames, sess.SSRC())

	var packets, bytes int
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for i := 0; i < frames; i++ {
		<-ticker.C
		chunk := tone.Next(frameDuration)
		payload, err := encode(chunk.Bytes())
		if err != nil {
			return err
		}
		pkts, err := sess.Packetize(payload)
		if err != nil {
			return err
		}
		for _, pkt := range pkts {
			n, err := conn.Write(pkt)
			if err != nil {
				return err
			}
			packets++
			bytes += n
		}
	}

	fmt.Printf("done: %d packets, %d bytes\n", packets, bytes)
	return nil
}

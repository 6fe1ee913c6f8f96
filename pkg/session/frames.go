package session

import (
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
)

// RTPReader is the part of a remote track the frame loop reads from.
type RTPReader interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// drainFrames receives the video track until it ends or errors, then
// returns silently. Frames are only counted, never decoded.
func (s *Session) drainFrames(track RTPReader) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			s.logger.Debug("video track ended", "error", err, "frames", s.frames.Load())
			return
		}
		if isFrameEnd(pkt) {
			s.frames.Add(1)
		}
	}
}

// isFrameEnd reports whether pkt carries the last packet of a video frame.
// Video payloaders set the RTP marker bit on that packet.
func isFrameEnd(pkt *rtp.Packet) bool {
	return pkt != nil && pkt.Marker
}

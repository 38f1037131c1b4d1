package sipua

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

// errNoCommonCodec is returned when a remote offer carries no codec we speak.
var errNoCommonCodec = errors.New("no common audio codec")

type codec struct {
	pt   uint8
	name string
}

// offered in preference order
var audioCodecs = []codec{
	{pt: 0, name: "PCMU"},
	{pt: 8, name: "PCMA"},
}

const (
	clockRate      = 8000
	telephoneEvent = "telephone-event"
	defaultDTMFPT  = 101
)

// media describes the audio line of a session description.
type media struct {
	host   string
	port   int
	codecs []codec
	// dtmfPT is the telephone-event payload type, 0 when absent.
	dtmfPT uint8
}

func newSession(sessionID uint64, m media) ([]byte, error) {
	md := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:   "audio",
			Port:    sdp.RangedPort{Value: m.port},
			Protos:  []string{"RTP", "AVP"},
			Formats: []string{},
		},
	}
	for _, c := range m.codecs {
		md = md.WithCodec(c.pt, c.name, clockRate, 0, "")
	}
	if m.dtmfPT != 0 {
		md = md.WithCodec(m.dtmfPT, telephoneEvent, clockRate, 0, "0-16")
	}
	md = md.WithPropertyAttribute(sdp.AttrKeySendRecv)

	sd := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      sessionID,
			SessionVersion: sessionID,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: m.host,
		},
		SessionName: "phone",
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: m.host},
		},
		TimeDescriptions:  []sdp.TimeDescription{{Timing: sdp.Timing{}}},
		MediaDescriptions: []*sdp.MediaDescription{md},
	}
	return sd.Marshal()
}

// buildOffer is the INVITE body for an outgoing call.
func buildOffer(sessionID uint64, host string, port int) ([]byte, error) {
	return newSession(sessionID, media{host: host, port: port, codecs: audioCodecs, dtmfPT: defaultDTMFPT})
}

// buildAnswer picks the first offered codec we support. An empty offer is a
// late offer and gets our own offer back.
func buildAnswer(sessionID uint64, host string, port int, offer []byte) ([]byte, error) {
	if len(strings.TrimSpace(string(offer))) == 0 {
		return buildOffer(sessionID, host, port)
	}
	remote, err := parseMedia(offer)
	if err != nil {
		return nil, err
	}
	for _, rc := range remote.codecs {
		for _, c := range audioCodecs {
			if rc.pt == c.pt {
				return newSession(sessionID, media{host: host, port: port, codecs: []codec{c}, dtmfPT: remote.dtmfPT})
			}
		}
	}
	return nil, errNoCommonCodec
}

// parseMedia reads the first audio line of a remote description.
func parseMedia(raw []byte) (media, error) {
	var sd sdp.SessionDescription
	if err := sd.Unmarshal(raw); err != nil {
		return media{}, fmt.Errorf("parse sdp: %w", err)
	}
	var m media
	if sd.ConnectionInformation != nil && sd.ConnectionInformation.Address != nil {
		m.host = sd.ConnectionInformation.Address.Address
	}
	for _, md := range sd.MediaDescriptions {
		if md.MediaName.Media != "audio" {
			continue
		}
		m.port = md.MediaName.Port.Value
		if md.ConnectionInformation != nil && md.ConnectionInformation.Address != nil {
			m.host = md.ConnectionInformation.Address.Address
		}
		names := rtpmaps(md)
		for _, f := range md.MediaName.Formats {
			pt, err := strconv.ParseUint(f, 10, 8)
			if err != nil {
				continue
			}
			name := names[uint8(pt)]
			if strings.EqualFold(name, telephoneEvent) {
				m.dtmfPT = uint8(pt)
				continue
			}
			m.codecs = append(m.codecs, codec{pt: uint8(pt), name: name})
		}
		return m, nil
	}
	return media{}, errors.New("parse sdp: no audio media")
}

// rtpmaps returns payload type -> encoding name.
func rtpmaps(md *sdp.MediaDescription) map[uint8]string {
	out := map[uint8]string{}
	for _, a := range md.Attributes {
		if a.Key != "rtpmap" {
			continue
		}
		ptRaw, rest, ok := strings.Cut(a.Value, " ")
		if !ok {
			continue
		}
		pt, err := strconv.ParseUint(ptRaw, 10, 8)
		if err != nil {
			continue
		}
		name, _, _ := strings.Cut(rest, "/")
		out[uint8(pt)] = name
	}
	return out
}

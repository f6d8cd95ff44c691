package main

import (
	"fmt"
	"io"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/soypat/dissect"
)

// pcapReader reads packets from a classic libpcap capture file and rejects
// records larger than the configured maximum frame size.
type pcapReader struct {
	r       *pcapgo.Reader
	maxSize int64
}

func newPcapReader(r io.Reader, maxSize int64) (*pcapReader, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("pcap: %w", err)
	}
	return &pcapReader{r: pr, maxSize: maxSize}, nil
}

// LinkType returns the link type of the capture, i.e. [layers.LinkTypeEthernet].
func (pr *pcapReader) LinkType() layers.LinkType { return pr.r.LinkType() }

// Next returns the next packet in a newly allocated buffer. It returns
// io.EOF once the capture is exhausted.
func (pr *pcapReader) Next() (dissect.Packet, error) {
	data, ci, err := pr.r.ReadPacketData()
	if err != nil {
		if err != io.EOF {
			err = fmt.Errorf("pcap: reading record: %w", err)
		}
		return dissect.Packet{}, err
	}
	if int64(ci.CaptureLength) > pr.maxSize {
		return dissect.Packet{}, fmt.Errorf("pcap: record of %d octets exceeds maximum frame size %d", ci.CaptureLength, pr.maxSize)
	}
	return dissect.Packet{
		Data: data,
		Metadata: dissect.Metadata{
			Timestamp:    ci.Timestamp,
			ActualLength: uint32(ci.Length),
		},
	}, nil
}

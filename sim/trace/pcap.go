package trace

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/matrix-sim/matrix/sim/network"
)

// JiffyDuration is how long one jiffy lasts in exported captures.
const JiffyDuration = time.Millisecond

const snapLen = 65536

// PcapWriter exports delivered frames as a libpcap capture of synthesized
// Ethernet/IPv4/TCP packets. Host i gets address 10.0.0.(i+1); a Data packet
// becomes PSH|ACK with the payload, Reset becomes RST and Ping becomes SYN.
// The matrix timestamp travels in the TCP sequence number.
type PcapWriter struct {
	w     *pcapgo.Writer
	hosts map[string]int
	buf   gopacket.SerializeBuffer
}

// NewPcapWriter writes the file header. hosts fixes the address plan.
func NewPcapWriter(w io.Writer, hosts []string) (*PcapWriter, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("writing pcap header: %w", err)
	}
	index := make(map[string]int, len(hosts))
	for i, h := range hosts {
		index[h] = i
	}
	return &PcapWriter{w: pw, hosts: index, buf: gopacket.NewSerializeBuffer()}, nil
}

// HostIP returns the synthesized address of host i.
func HostIP(i int) net.IP {
	return net.IPv4(10, 0, byte((i+1)>>8), byte(i+1)).To4()
}

func hostMAC(i int) net.HardwareAddr {
	return net.HardwareAddr{0x02, 0x00, 0x00, 0x00, byte((i + 1) >> 8), byte(i + 1)}
}

func (p *PcapWriter) host(name string) (int, error) {
	i, ok := p.hosts[name]
	if !ok {
		return 0, fmt.Errorf("host %q not in address plan", name)
	}
	return i, nil
}

// WriteFrame appends one delivered frame, stamped with its delivery time.
func (p *PcapWriter) WriteFrame(f network.DeliveredFrame) error {
	src, err := p.host(f.Source)
	if err != nil {
		return err
	}
	dst, err := p.host(f.Dest)
	if err != nil {
		return err
	}

	eth := &layers.Ethernet{
		SrcMAC:       hostMAC(src),
		DstMAC:       hostMAC(dst),
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    HostIP(src),
		DstIP:    HostIP(dst),
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(f.Packet.SourcePort),
		DstPort: layers.TCPPort(f.Packet.DestPort),
		Seq:     uint32(f.Packet.Timestamp),
		Window:  65535,
	}
	switch f.Packet.Type {
	case network.Data:
		tcp.PSH, tcp.ACK = true, true
	case network.Reset:
		tcp.RST = true
	case network.Ping:
		tcp.SYN = true
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return err
	}

	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(p.buf, opts, eth, ip, tcp, gopacket.Payload(f.Packet.Payload)); err != nil {
		return fmt.Errorf("serializing frame %s -> %s: %w", f.Source, f.Dest, err)
	}
	data := p.buf.Bytes()
	ci := gopacket.CaptureInfo{
		Timestamp:     time.Unix(0, 0).Add(time.Duration(f.DeliveryTime) * JiffyDuration).UTC(),
		CaptureLength: len(data),
		Length:        len(data),
	}
	return p.w.WritePacket(ci, data)
}

// WritePcap writes a whole capture.
func WritePcap(w io.Writer, hosts []string, frames []network.DeliveredFrame) error {
	pw, err := NewPcapWriter(w, hosts)
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := pw.WriteFrame(f); err != nil {
			return err
		}
	}
	return nil
}

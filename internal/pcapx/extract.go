// Package pcapx extracts X3.28 transactions from packet captures of
// serial-bridge TCP traffic. Each bridge connection is reassembled into its
// two directions and run through the passive bus scanner, producing the
// same transaction stream a live tap would see.
package pcapx

import (
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/cth-oso/x328/internal/x328/scanner"
)

// DefaultBridgePort is the TCP port serial bridges are assumed to listen
// on when the capture does not say otherwise.
const DefaultBridgePort = 7032

// Transaction is one reconstructed bus transaction. Value is set for
// successful reads and for write requests; Err describes rejections,
// corrupt responses and timeouts.
type Transaction struct {
	Kind      string // "read", "write", "timeout" or "unexpected"
	Station   int
	Parameter int
	Value     *int
	Err       string
	Timestamp time.Time
	SrcIP     string
	DstIP     string
	SrcPort   uint16
	DstPort   uint16
}

// conversation tracks one bridge connection across both directions.
type conversation struct {
	scan    *scanner.Scanner
	ctrlBuf []byte
	nodeBuf []byte

	// the command awaiting its response
	pending     bool
	pendingKind string
	station     int
	parameter   int
	value       int
}

// ExtractFromPCAP reads a capture file and reconstructs the X3.28
// transactions carried over TCP to or from bridgePort. Pass 0 to use
// DefaultBridgePort.
func ExtractFromPCAP(pcapFile string, bridgePort uint16) ([]Transaction, error) {
	if bridgePort == 0 {
		bridgePort = DefaultBridgePort
	}

	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return nil, fmt.Errorf("open pcap file: %w", err)
	}
	defer handle.Close()

	var txs []Transaction
	convs := make(map[string]*conversation)
	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())

	for packet := range packetSource.Packets() {
		tcpLayer := packet.Layer(layers.LayerTypeTCP)
		if tcpLayer == nil {
			continue
		}
		tcp, _ := tcpLayer.(*layers.TCP)
		srcPort, dstPort := uint16(tcp.SrcPort), uint16(tcp.DstPort)
		if srcPort != bridgePort && dstPort != bridgePort {
			continue
		}
		if len(tcp.Payload) == 0 {
			continue
		}
		netLayer := packet.NetworkLayer()
		if netLayer == nil {
			continue
		}

		key := conversationKey(netLayer, srcPort, dstPort, bridgePort)
		conv, ok := convs[key]
		if !ok {
			conv = &conversation{scan: scanner.New()}
			convs[key] = conv
		}

		meta := packetMeta(packet, netLayer, srcPort, dstPort)
		if dstPort == bridgePort {
			txs = conv.feedController(tcp.Payload, meta, txs)
		} else {
			txs = conv.feedNode(tcp.Payload, meta, txs)
		}
	}

	// commands the capture ended on without an answer
	for _, conv := range convs {
		if conv.pending {
			txs = append(txs, Transaction{
				Kind:      "timeout",
				Station:   conv.station,
				Parameter: conv.parameter,
				Err:       "no response before end of capture",
			})
		}
	}

	return txs, nil
}

func (c *conversation) feedController(payload []byte, meta Transaction, txs []Transaction) []Transaction {
	c.ctrlBuf = append(c.ctrlBuf, payload...)
	for len(c.ctrlBuf) > 0 {
		consumed, ev := c.scan.FeedController(c.ctrlBuf)
		c.ctrlBuf = c.ctrlBuf[consumed:]

		switch ev.Kind {
		case scanner.CtrlNodeTimeout:
			tx := meta
			tx.Kind = "timeout"
			tx.Station = c.station
			tx.Parameter = c.parameter
			tx.Err = "node did not answer"
			txs = append(txs, tx)
			c.pending = false
			continue

		case scanner.CtrlRead:
			c.pending = true
			c.pendingKind = "read"
			c.station = int(ev.Address)
			c.parameter = int(ev.Parameter)

		case scanner.CtrlWrite:
			c.pending = true
			c.pendingKind = "write"
			c.station = int(ev.Address)
			c.parameter = int(ev.Parameter)
			c.value = ev.Value.Int()
		}

		if consumed == 0 {
			break
		}
	}
	return txs
}

func (c *conversation) feedNode(payload []byte, meta Transaction, txs []Transaction) []Transaction {
	c.nodeBuf = append(c.nodeBuf, payload...)
	for len(c.nodeBuf) > 0 {
		consumed, ev := c.scan.FeedNode(c.nodeBuf)
		c.nodeBuf = c.nodeBuf[consumed:]

		switch ev.Kind {
		case scanner.NodeNone:
			if consumed == 0 {
				return txs
			}
			continue

		case scanner.NodeRead, scanner.NodeWrite:
			tx := meta
			tx.Kind = c.pendingKind
			tx.Station = c.station
			tx.Parameter = c.parameter
			if ev.Err != nil {
				tx.Err = ev.Err.Error()
			} else if ev.Kind == scanner.NodeRead {
				v := ev.Value.Int()
				tx.Value = &v
			} else {
				v := c.value
				tx.Value = &v
			}
			txs = append(txs, tx)
			c.pending = false

		case scanner.NodeUnexpected:
			tx := meta
			tx.Kind = "unexpected"
			tx.Err = "node transmitted without an outstanding request"
			txs = append(txs, tx)
		}

		if consumed == 0 {
			return txs
		}
	}
	return txs
}

// conversationKey is direction-independent so both halves of a connection
// land in the same conversation.
func conversationKey(netLayer gopacket.NetworkLayer, srcPort, dstPort, bridgePort uint16) string {
	flow := netLayer.NetworkFlow()
	if dstPort == bridgePort {
		return fmt.Sprintf("%s:%d->%s:%d", flow.Src(), srcPort, flow.Dst(), dstPort)
	}
	return fmt.Sprintf("%s:%d->%s:%d", flow.Dst(), dstPort, flow.Src(), srcPort)
}

func packetMeta(packet gopacket.Packet, netLayer gopacket.NetworkLayer, srcPort, dstPort uint16) Transaction {
	meta := Transaction{
		SrcIP:   netLayer.NetworkFlow().Src().String(),
		DstIP:   netLayer.NetworkFlow().Dst().String(),
		SrcPort: srcPort,
		DstPort: dstPort,
	}
	if m := packet.Metadata(); m != nil {
		meta.Timestamp = m.Timestamp
	}
	return meta
}

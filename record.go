// SPDX-License-Identifier: GPL-3.0-or-later

package mdnscodec

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// RecordHeader is the part common to every resource record.
type RecordHeader struct {
	// Name is the absolute record name, with a trailing dot.
	Name string

	// Type is the record type.
	Type uint16

	// Class is the raw class field, including the mDNS cache-flush
	// bit when present.
	Class uint16

	// TTL is the time to live in seconds, signed as on the wire.
	TTL int32

	// Created is when this record was received.
	Created time.Time
}

// Header implements [Record].
func (h *RecordHeader) Header() *RecordHeader { return h }

// CacheFlush reports whether the mDNS cache-flush bit of the class
// field is set.
func (h *RecordHeader) CacheFlush() bool {
	return h.Class&classCacheFlush != 0
}

func (h *RecordHeader) headerString() string {
	return h.Name + " " + strconv.Itoa(int(h.TTL)) + " " + typeString(h.Type)
}

// Record is one decoded resource record.
//
// The concrete type is one of [*AddressRecord], [*PointerRecord],
// [*TextRecord], [*ServiceRecord], [*HinfoRecord] and [*NsecRecord],
// keyed by the Type field of the header. Records of unrecognized types
// are never produced: the decoder skips their payload.
type Record interface {
	// Header returns the fields common to all records.
	Header() *RecordHeader

	// RR converts the record to the equivalent [dns.RR].
	RR() (dns.RR, error)

	// String returns a presentation form for diagnostics.
	String() string
}

// AddressRecord is an A or AAAA record.
type AddressRecord struct {
	RecordHeader

	// Address is the decoded address. For AAAA records it carries the
	// zone derived from the packet's scope identifier, when one was
	// supplied.
	Address netip.Addr

	// ScopeID is the address-family scope identifier from
	// [PacketInfo], or zero. Only AAAA records carry it.
	ScopeID int
}

func (r *AddressRecord) String() string {
	return r.headerString() + " " + r.Address.String()
}

// PointerRecord is a CNAME or PTR record.
type PointerRecord struct {
	RecordHeader

	// Target is the decompressed name the record points at.
	Target string
}

func (r *PointerRecord) String() string {
	return r.headerString() + " " + r.Target
}

// TextRecord is a TXT record. The payload is kept as the raw rdata
// octets and not parsed further.
type TextRecord struct {
	RecordHeader

	// Text is the raw rdata.
	Text []byte
}

func (r *TextRecord) String() string {
	return r.headerString() + " " + strconv.Quote(string(r.Text))
}

// ServiceRecord is an SRV record.
type ServiceRecord struct {
	RecordHeader

	Priority uint16
	Weight   uint16
	Port     uint16

	// TargetHost is the decompressed name of the host providing the
	// service.
	TargetHost string
}

func (r *ServiceRecord) String() string {
	return fmt.Sprintf("%s %d %d %d %s",
		r.headerString(), r.Priority, r.Weight, r.Port, r.TargetHost)
}

// HinfoRecord is a HINFO record.
type HinfoRecord struct {
	RecordHeader

	// CPU and OS are the two character strings of the record, decoded
	// as UTF-8 text.
	CPU string
	OS  string
}

func (r *HinfoRecord) String() string {
	return r.headerString() + " " + strconv.Quote(r.CPU) + " " + strconv.Quote(r.OS)
}

// NsecRecord is an NSEC record, which mDNS responders use to assert
// which record types exist for a name.
type NsecRecord struct {
	RecordHeader

	// NextName is the decompressed next name field.
	NextName string

	// Types lists the type numbers present in the bitmap, in the
	// order they appear. Malformed input may repeat a type; no
	// deduplication is performed.
	Types []uint16
}

func (r *NsecRecord) String() string {
	mnemonics := make([]string, 0, len(r.Types))
	for _, t := range r.Types {
		mnemonics = append(mnemonics, typeString(t))
	}
	return r.headerString() + " " + r.NextName + " " + strings.Join(mnemonics, ",")
}

// readRecord decodes the type-specific payload of one record. Unknown
// types advance the cursor past the payload and produce no record, so
// the next record still parses correctly.
func (m *Message) readRecord(name string, rrtype, class uint16, ttl int32, rdlength int) (Record, error) {
	hdr := RecordHeader{Name: name, Type: rrtype, Class: class, TTL: ttl, Created: m.now}
	switch rrtype {
	case TypeA:
		raw, err := m.readString(4)
		if err != nil {
			return nil, err
		}
		addr, _ := netip.AddrFromSlice(raw)
		return &AddressRecord{RecordHeader: hdr, Address: addr}, nil

	case TypeCNAME, TypePTR:
		target, err := m.readName()
		if err != nil {
			return nil, err
		}
		return &PointerRecord{RecordHeader: hdr, Target: target}, nil

	case TypeTXT:
		raw, err := m.readString(rdlength)
		if err != nil {
			return nil, err
		}
		return &TextRecord{RecordHeader: hdr, Text: raw}, nil

	case TypeSRV:
		if len(m.data)-m.off < 6 {
			return nil, fmt.Errorf("SRV prefix at %d is cut short: %w", m.off, ErrShortPacket)
		}
		priority := binary.BigEndian.Uint16(m.data[m.off+0:])
		weight := binary.BigEndian.Uint16(m.data[m.off+2:])
		port := binary.BigEndian.Uint16(m.data[m.off+4:])
		m.off += 6
		target, err := m.readName()
		if err != nil {
			return nil, err
		}
		return &ServiceRecord{
			RecordHeader: hdr,
			Priority:     priority,
			Weight:       weight,
			Port:         port,
			TargetHost:   target,
		}, nil

	case TypeHINFO:
		cpu, err := m.readCharacterString()
		if err != nil {
			return nil, err
		}
		os, err := m.readCharacterString()
		if err != nil {
			return nil, err
		}
		return &HinfoRecord{
			RecordHeader: hdr,
			CPU:          strings.ToValidUTF8(string(cpu), "�"),
			OS:           strings.ToValidUTF8(string(os), "�"),
		}, nil

	case TypeAAAA:
		raw, err := m.readString(16)
		if err != nil {
			return nil, err
		}
		addr, _ := netip.AddrFromSlice(raw)
		if m.scopeID != 0 {
			addr = addr.WithZone(strconv.Itoa(m.scopeID))
		}
		return &AddressRecord{RecordHeader: hdr, Address: addr, ScopeID: m.scopeID}, nil

	case TypeNSEC:
		rdataStart := m.off
		next, err := m.readName()
		if err != nil {
			return nil, err
		}
		types, err := m.readBitmap(rdataStart + rdlength)
		if err != nil {
			return nil, err
		}
		return &NsecRecord{RecordHeader: hdr, NextName: next, Types: types}, nil
	}

	m.off += rdlength
	return nil, nil
}

// readString reads length raw octets at the cursor.
func (m *Message) readString(length int) ([]byte, error) {
	if length < 0 || len(m.data)-m.off < length {
		return nil, fmt.Errorf("%d octets at %d run past the packet: %w", length, m.off, ErrShortPacket)
	}
	raw := m.data[m.off : m.off+length]
	m.off += length
	return raw, nil
}

// readCharacterString reads one length-prefixed character string.
func (m *Message) readCharacterString() ([]byte, error) {
	if len(m.data)-m.off < 1 {
		return nil, fmt.Errorf("character string at %d is cut short: %w", m.off, ErrShortPacket)
	}
	length := int(m.data[m.off])
	m.off++
	return m.readString(length)
}

// readBitmap decodes the NSEC type bitmap, which occupies the rdata up
// to end. Each window block is a window number, an octet count, and
// that many octets whose bits mark the types present, most significant
// bit first: bit b of octet i in window w stands for type w*256+i*8+b.
func (m *Message) readBitmap(end int) ([]uint16, error) {
	var types []uint16
	for m.off < end {
		if len(m.data)-m.off < 2 {
			return nil, fmt.Errorf("bitmap block at %d is cut short: %w", m.off, ErrShortPacket)
		}
		window := int(m.data[m.off])
		length := int(m.data[m.off+1])
		if len(m.data)-m.off < 2+length {
			return nil, fmt.Errorf("bitmap block at %d runs past the packet: %w", m.off, ErrShortPacket)
		}
		for i, b := range m.data[m.off+2 : m.off+2+length] {
			for bit := range 8 {
				if b&(0x80>>bit) != 0 {
					types = append(types, uint16(window*256+i*8+bit))
				}
			}
		}
		m.off += 2 + length
	}
	return types, nil
}

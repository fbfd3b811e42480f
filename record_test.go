// SPDX-License-Identifier: GPL-3.0-or-later

package mdnscodec

import (
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

var fixtureTime = time.Date(2024, 5, 4, 3, 2, 1, 0, time.UTC)

// fixtureResponse builds a response exercising every recognized record
// type, with compression enabled so that owner names arrive as pointers.
func fixtureResponse() *dns.Msg {
	msg := new(dns.Msg)
	msg.Response = true
	msg.Authoritative = true
	msg.Compress = true
	msg.Answer = []dns.RR{
		&dns.PTR{
			Hdr: dns.RR_Header{Name: "_http._tcp.local.", Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: 4500},
			Ptr: "printer._http._tcp.local.",
		},
		&dns.SRV{
			Hdr:      dns.RR_Header{Name: "printer._http._tcp.local.", Rrtype: dns.TypeSRV, Class: dns.ClassINET, Ttl: 120},
			Priority: 0,
			Weight:   0,
			Port:     8080,
			Target:   "printer.local.",
		},
		&dns.TXT{
			Hdr: dns.RR_Header{Name: "printer._http._tcp.local.", Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: 4500},
			Txt: []string{"path=/", "v=1"},
		},
		&dns.A{
			Hdr: dns.RR_Header{Name: "printer.local.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 120},
			A:   net.IPv4(192, 0, 2, 1).To4(),
		},
		&dns.AAAA{
			Hdr:  dns.RR_Header{Name: "printer.local.", Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: 120},
			AAAA: net.ParseIP("fe80::1"),
		},
		&dns.CNAME{
			Hdr:    dns.RR_Header{Name: "print.local.", Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: 120},
			Target: "printer.local.",
		},
		&dns.HINFO{
			Hdr: dns.RR_Header{Name: "printer.local.", Rrtype: dns.TypeHINFO, Class: dns.ClassINET, Ttl: 120},
			Cpu: "ARM64",
			Os:  "LINUX",
		},
		&dns.NSEC{
			Hdr:        dns.RR_Header{Name: "printer.local.", Rrtype: dns.TypeNSEC, Class: dns.ClassINET, Ttl: 120},
			NextDomain: "printer.local.",
			TypeBitMap: []uint16{TypeA, TypeAAAA, TypeSRV},
		},
	}
	return msg
}

func TestDecodeKnownRecordTypes(t *testing.T) {
	raw, err := fixtureResponse().Pack()
	require.NoError(t, err)

	m := Parse(raw, &PacketInfo{ScopeID: 3, Now: fixtureTime})
	require.True(t, m.Valid)
	require.True(t, m.IsResponse())

	answers := m.Answers()
	require.Len(t, answers, 8)
	require.True(t, m.Valid)

	ptr, ok := answers[0].(*PointerRecord)
	require.True(t, ok)
	require.Equal(t, "_http._tcp.local.", ptr.Name)
	require.Equal(t, TypePTR, ptr.Type)
	require.Equal(t, int32(4500), ptr.TTL)
	require.Equal(t, fixtureTime, ptr.Created)
	require.Equal(t, "printer._http._tcp.local.", ptr.Target)

	srv, ok := answers[1].(*ServiceRecord)
	require.True(t, ok)
	require.Equal(t, "printer._http._tcp.local.", srv.Name)
	require.Equal(t, uint16(0), srv.Priority)
	require.Equal(t, uint16(0), srv.Weight)
	require.Equal(t, uint16(8080), srv.Port)
	require.Equal(t, "printer.local.", srv.TargetHost)

	txt, ok := answers[2].(*TextRecord)
	require.True(t, ok)
	require.Equal(t, []byte("\x06path=/\x03v=1"), txt.Text)

	a, ok := answers[3].(*AddressRecord)
	require.True(t, ok)
	require.Equal(t, netip.MustParseAddr("192.0.2.1"), a.Address)
	require.Equal(t, 0, a.ScopeID)

	aaaa, ok := answers[4].(*AddressRecord)
	require.True(t, ok)
	require.Equal(t, netip.MustParseAddr("fe80::1").WithZone("3"), aaaa.Address)
	require.Equal(t, 3, aaaa.ScopeID)

	cname, ok := answers[5].(*PointerRecord)
	require.True(t, ok)
	require.Equal(t, TypeCNAME, cname.Type)
	require.Equal(t, "printer.local.", cname.Target)

	hinfo, ok := answers[6].(*HinfoRecord)
	require.True(t, ok)
	require.Equal(t, "ARM64", hinfo.CPU)
	require.Equal(t, "LINUX", hinfo.OS)

	nsec, ok := answers[7].(*NsecRecord)
	require.True(t, ok)
	require.Equal(t, "printer.local.", nsec.NextName)
	require.Equal(t, []uint16{TypeA, TypeAAAA, TypeSRV}, nsec.Types)
}

func TestDecodeNsecBitmapWindowZero(t *testing.T) {
	data := testHeader(1, 0x8400, 0, 1, 0, 0)
	data = appendName(data, "host", "local")
	rdata := appendName(nil, "host", "local")
	rdata = append(rdata, 0x00, 0x01, 0x40) // window 0, one octet, bit 1 set
	data = appendRecordPrefix(data, TypeNSEC, ClassIN, 120, uint16(len(rdata)))
	data = append(data, rdata...)

	m := Parse(data, nil)
	answers := m.Answers()

	require.Len(t, answers, 1)
	nsec, ok := answers[0].(*NsecRecord)
	require.True(t, ok)
	require.Equal(t, []uint16{1}, nsec.Types)
}

func TestDecodeNsecBitmapHighWindow(t *testing.T) {
	// Type 1234 lives in window 4, octet 26, bit 2.
	bitmap := make([]byte, 27)
	bitmap[26] = 0x80 >> 2

	data := testHeader(1, 0x8400, 0, 1, 0, 0)
	data = appendName(data, "host", "local")
	rdata := appendName(nil, "host", "local")
	rdata = append(rdata, 0x04, byte(len(bitmap)))
	rdata = append(rdata, bitmap...)
	data = appendRecordPrefix(data, TypeNSEC, ClassIN, 120, uint16(len(rdata)))
	data = append(data, rdata...)

	m := Parse(data, nil)
	answers := m.Answers()

	require.Len(t, answers, 1)
	require.Equal(t, []uint16{1234}, answers[0].(*NsecRecord).Types)
}

func TestDecodeHinfoTruncatedIsSkipped(t *testing.T) {
	data := testHeader(1, 0x8400, 0, 1, 0, 0)
	data = appendName(data, "host", "local")
	// One complete character string, then the packet ends where the
	// second should start.
	data = appendRecordPrefix(data, TypeHINFO, ClassIN, 120, 4)
	data = append(data, 0x03, 'a', 'b', 'c')

	m := Parse(data, nil)

	require.True(t, m.Valid)
	require.Empty(t, m.Answers())
}

func TestDecodeTruncatedAddressIsSkipped(t *testing.T) {
	data := testHeader(1, 0x8400, 0, 1, 0, 0)
	data = appendName(data, "host", "local")
	data = appendRecordPrefix(data, TypeA, ClassIN, 120, 4)
	data = append(data, 192, 0) // two of four octets

	m := Parse(data, nil)

	require.True(t, m.Valid)
	require.Empty(t, m.Answers())
}

func TestRecordStrings(t *testing.T) {
	raw, err := fixtureResponse().Pack()
	require.NoError(t, err)

	m := Parse(raw, &PacketInfo{Now: fixtureTime})
	answers := m.Answers()
	require.Len(t, answers, 8)

	require.Equal(t, "_http._tcp.local. 4500 PTR printer._http._tcp.local.", answers[0].String())
	require.Equal(t, "printer._http._tcp.local. 120 SRV 0 0 8080 printer.local.", answers[1].String())
	require.Equal(t, `printer._http._tcp.local. 4500 TXT "\x06path=/\x03v=1"`, answers[2].String())
	require.Equal(t, "printer.local. 120 A 192.0.2.1", answers[3].String())
	require.Equal(t, `printer.local. 120 HINFO "ARM64" "LINUX"`, answers[6].String())
	require.Equal(t, "printer.local. 120 NSEC printer.local. A,AAAA,SRV", answers[7].String())
}

func TestRoundTrip(t *testing.T) {
	info := &PacketInfo{ScopeID: 3, Now: fixtureTime}

	orig := fixtureResponse()
	orig.SetQuestion("_http._tcp.local.", dns.TypePTR)
	orig.Id = 42
	raw, err := orig.Pack()
	require.NoError(t, err)

	first := Parse(raw, info)
	require.True(t, first.Valid)
	records := first.Answers()
	require.Len(t, records, 8)

	// Re-encode through the external serializer and decode again: the
	// result must match field for field.
	out := new(dns.Msg)
	out.Id = first.ID
	out.Response = true
	for _, q := range first.Questions {
		out.Question = append(out.Question, dns.Question{Name: q.Name, Qtype: q.Type, Qclass: q.Class})
	}
	for _, rec := range records {
		rr, err := rec.RR()
		require.NoError(t, err)
		out.Answer = append(out.Answer, rr)
	}
	raw2, err := out.Pack()
	require.NoError(t, err)

	second := Parse(raw2, info)
	require.True(t, second.Valid)
	require.Equal(t, first.Questions, second.Questions)
	require.Equal(t, records, second.Answers())
}

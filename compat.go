// SPDX-License-Identifier: GPL-3.0-or-later

package mdnscodec

import (
	"errors"
	"fmt"
	"net"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

// ErrCannotConvert means a record cannot be expressed as a [dns.RR].
var ErrCannotConvert = errors.New("cannot convert record")

func (h *RecordHeader) rrHeader() dns.RR_Header {
	return dns.RR_Header{
		Name:   h.Name,
		Rrtype: h.Type,
		Class:  h.Class,
		Ttl:    uint32(h.TTL),
	}
}

// RR implements [Record].
func (r *AddressRecord) RR() (dns.RR, error) {
	addr := r.Address.WithZone("")
	if addr.Is4() {
		return &dns.A{Hdr: r.rrHeader(), A: net.IP(addr.AsSlice())}, nil
	}
	return &dns.AAAA{Hdr: r.rrHeader(), AAAA: net.IP(addr.AsSlice())}, nil
}

// RR implements [Record].
func (r *PointerRecord) RR() (dns.RR, error) {
	switch r.Type {
	case TypeCNAME:
		return &dns.CNAME{Hdr: r.rrHeader(), Target: r.Target}, nil
	case TypePTR:
		return &dns.PTR{Hdr: r.rrHeader(), Ptr: r.Target}, nil
	}
	return nil, fmt.Errorf("%w: pointer record with type %s", ErrCannotConvert, typeString(r.Type))
}

// RR implements [Record]. The raw rdata is split back into its
// character strings; rdata with a truncated final string cannot be
// converted.
func (r *TextRecord) RR() (dns.RR, error) {
	txt, err := unpackTxtStrings(r.Text)
	if err != nil {
		return nil, err
	}
	return &dns.TXT{Hdr: r.rrHeader(), Txt: txt}, nil
}

// RR implements [Record].
func (r *ServiceRecord) RR() (dns.RR, error) {
	return &dns.SRV{
		Hdr:      r.rrHeader(),
		Priority: r.Priority,
		Weight:   r.Weight,
		Port:     r.Port,
		Target:   r.TargetHost,
	}, nil
}

// RR implements [Record].
func (r *HinfoRecord) RR() (dns.RR, error) {
	return &dns.HINFO{Hdr: r.rrHeader(), Cpu: r.CPU, Os: r.OS}, nil
}

// RR implements [Record]. Note that [dns.NSEC] refuses to pack a type
// bitmap that is not strictly increasing, which a decoded Types slice
// from malformed input may not be.
func (r *NsecRecord) RR() (dns.RR, error) {
	return &dns.NSEC{
		Hdr:        r.rrHeader(),
		NextDomain: r.NextName,
		TypeBitMap: r.Types,
	}, nil
}

// unpackTxtStrings splits raw TXT rdata into its character strings.
func unpackTxtStrings(raw []byte) ([]string, error) {
	var out []string
	for off := 0; off < len(raw); {
		length := int(raw[off])
		off++
		if off+length > len(raw) {
			return nil, fmt.Errorf("%w: truncated TXT character string", ErrCannotConvert)
		}
		out = append(out, string(raw[off:off+length]))
		off += length
	}
	return out, nil
}

// UnicodeName returns the question name in Unicode display form,
// mapping any punycode labels emitted by legacy DNS responders. Plain
// UTF-8 mDNS names come back unchanged.
func (q Question) UnicodeName() (string, error) {
	return idna.Display.ToUnicode(q.Name)
}

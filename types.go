// SPDX-License-Identifier: GPL-3.0-or-later

package mdnscodec

import "strconv"

// Record types recognized by the decoder. Records of any other type are
// skipped, not rejected.
const (
	TypeA     uint16 = 1
	TypeCNAME uint16 = 5
	TypePTR   uint16 = 12
	TypeHINFO uint16 = 13
	TypeTXT   uint16 = 16
	TypeAAAA  uint16 = 28
	TypeSRV   uint16 = 33
	TypeNSEC  uint16 = 47
)

// ClassIN is the Internet class, the only class seen in practice.
const ClassIN uint16 = 1

// classCacheFlush is the top bit of the class field, which Multicast
// DNS repurposes as the cache-flush bit.
const classCacheFlush uint16 = 0x8000

// Header flag masks. The QR test uses the top two bits: only 00 is a
// query and only 10 is a response.
const (
	flagsQRMask     uint16 = 0xC000
	flagsQRQuery    uint16 = 0x0000
	flagsQRResponse uint16 = 0x8000
	flagsTC         uint16 = 0x0200
)

// TypeToString maps the recognized record types to their mnemonics.
var TypeToString = map[uint16]string{
	TypeA:     "A",
	TypeCNAME: "CNAME",
	TypePTR:   "PTR",
	TypeHINFO: "HINFO",
	TypeTXT:   "TXT",
	TypeAAAA:  "AAAA",
	TypeSRV:   "SRV",
	TypeNSEC:  "NSEC",
}

// typeString renders a record type for diagnostics, falling back to the
// numeric code for types we do not know about.
func typeString(t uint16) string {
	if s, ok := TypeToString[t]; ok {
		return s
	}
	return strconv.Itoa(int(t))
}

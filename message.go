// SPDX-License-Identifier: GPL-3.0-or-later

package mdnscodec

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"net/netip"
	"time"
)

// Parser decodes incoming mDNS messages.
//
// The zero value is ready to use. A single Parser may be shared by
// concurrent goroutines: each [*Parser.Parse] call touches only the
// message being decoded plus the [ErrorLog], which synchronizes itself.
type Parser struct {
	// Logger OPTIONALLY overrides the diagnostics destination.
	//
	// When nil, [slog.Default] is used. Diagnostics are emitted at
	// debug level only.
	Logger *slog.Logger

	// Errors OPTIONALLY injects the table used to deduplicate decode
	// diagnostics, so that tests can reset it between cases and
	// multiple parsers can share one view of what was already seen.
	//
	// When nil, a package-wide shared table is used.
	Errors *ErrorLog
}

// PacketInfo carries optional context about a received datagram.
type PacketInfo struct {
	// Source is the OPTIONAL originating endpoint. It is used for
	// diagnostics only.
	Source netip.AddrPort

	// ScopeID is the OPTIONAL address-family scope identifier used to
	// fully qualify decoded IPv6 addresses.
	ScopeID int

	// Now is the OPTIONAL capture time stamped onto every decoded
	// record as its creation time. When zero, [time.Now] is used.
	Now time.Time
}

// Question is one entry of the question section.
type Question struct {
	// Name is the absolute queried name, with a trailing dot.
	Name string

	// Type is the query type.
	Type uint16

	// Class is the query class.
	Class uint16
}

// Message is a decoded incoming mDNS message.
//
// Construct using [Parse] or [*Parser.Parse]. The header and the
// question section are decoded eagerly; the record sections are
// decoded on the first [*Message.Answers] call, because many callers
// only need the header to decide, say, whether the datagram is a query.
type Message struct {
	// ID is the message identifier.
	ID uint16

	// Flags is the raw flags field. Use [*Message.IsQuery],
	// [*Message.IsResponse] and [*Message.Truncated] to interpret it.
	Flags uint16

	// Section counts as declared by the header. They are not
	// necessarily equal to the number of entries actually decoded.
	NumQuestions   uint16
	NumAnswers     uint16
	NumAuthorities uint16
	NumAdditionals uint16

	// Questions holds the decoded question section.
	Questions []Question

	// Valid reports whether the header and the question section
	// decoded without error. Record-section errors never clear Valid.
	Valid bool

	data          []byte
	off           int
	nameCache     map[int][]string
	answers       []Record
	didReadOthers bool

	source  netip.AddrPort
	scopeID int
	now     time.Time
	logger  *slog.Logger
	errlog  *ErrorLog
}

// Parse decodes data using a zero [Parser]. The info argument is
// OPTIONAL and may be nil.
func Parse(data []byte, info *PacketInfo) *Message {
	var p Parser
	return p.Parse(data, info)
}

// Parse decodes the raw bytes of one received datagram.
//
// Parse always returns a non-nil message: decode failures surface
// through [Message.Valid] and the diagnostics log rather than an error
// value, because a partially decoded message is still useful. The info
// argument is OPTIONAL and may be nil.
func (p *Parser) Parse(data []byte, info *PacketInfo) *Message {
	m := &Message{
		data:      data,
		nameCache: make(map[int][]string),
		logger:    p.Logger,
		errlog:    p.Errors,
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.errlog == nil {
		m.errlog = defaultErrorLog
	}
	if info != nil {
		m.source = info.Source
		m.scopeID = info.ScopeID
		m.now = info.Now
	}
	if m.now.IsZero() {
		m.now = time.Now()
	}

	if err := m.readHeader(); err != nil {
		m.logInvalidPacket(err)
		return m
	}
	if err := m.readQuestions(); err != nil {
		m.logInvalidPacket(err)
		return m
	}
	m.Valid = true
	return m
}

// IsQuery reports whether the QR bits mark the message as a query.
func (m *Message) IsQuery() bool {
	return m.Flags&flagsQRMask == flagsQRQuery
}

// IsResponse reports whether the QR bits mark the message as a response.
func (m *Message) IsResponse() bool {
	return m.Flags&flagsQRMask == flagsQRResponse
}

// Truncated reports whether the TC bit is set.
func (m *Message) Truncated() bool {
	return m.Flags&flagsTC != 0
}

// Answers returns the records of the answer, authority and additional
// sections, decoding them on first use. The three sections are not
// distinguished: callers get one ordered sequence. Repeated calls
// return the same records.
func (m *Message) Answers() []Record {
	if !m.didReadOthers {
		if err := m.readOthers(); err != nil {
			m.logInvalidPacket(err)
		}
	}
	return m.answers
}

// String returns a compact diagnostic rendering of the message.
func (m *Message) String() string {
	kind := "message"
	switch {
	case m.IsQuery():
		kind = "query"
	case m.IsResponse():
		kind = "response"
	}
	return fmt.Sprintf("mdns %s id=%d flags=0x%04x questions=%d/%d answers=%d auth=%d add=%d valid=%t",
		kind, m.ID, m.Flags, len(m.Questions), m.NumQuestions,
		m.NumAnswers, m.NumAuthorities, m.NumAdditionals, m.Valid)
}

const headerLen = 12

// readHeader decodes the fixed 12-octet header: six big-endian 16-bit
// integers. Flag bits are interpreted by accessors, not checked here.
func (m *Message) readHeader() error {
	if len(m.data)-m.off < headerLen {
		return fmt.Errorf("header wants %d octets, have %d: %w", headerLen, len(m.data), ErrShortPacket)
	}
	m.ID = binary.BigEndian.Uint16(m.data[m.off+0:])
	m.Flags = binary.BigEndian.Uint16(m.data[m.off+2:])
	m.NumQuestions = binary.BigEndian.Uint16(m.data[m.off+4:])
	m.NumAnswers = binary.BigEndian.Uint16(m.data[m.off+6:])
	m.NumAuthorities = binary.BigEndian.Uint16(m.data[m.off+8:])
	m.NumAdditionals = binary.BigEndian.Uint16(m.data[m.off+10:])
	m.off += headerLen
	return nil
}

// readQuestions decodes the question section. A corrupt question makes
// every later offset unreliable, so any failure aborts the decode and
// leaves Questions empty.
func (m *Message) readQuestions() error {
	// The count is attacker controlled, so no preallocation.
	var questions []Question
	for range int(m.NumQuestions) {
		name, err := m.readName()
		if err != nil {
			return err
		}
		if len(m.data)-m.off < 4 {
			return fmt.Errorf("question at %d is cut short: %w", m.off, ErrShortPacket)
		}
		questions = append(questions, Question{
			Name:  name,
			Type:  binary.BigEndian.Uint16(m.data[m.off+0:]),
			Class: binary.BigEndian.Uint16(m.data[m.off+2:]),
		})
		m.off += 4
	}
	m.Questions = questions
	return nil
}

// readOthers decodes the combined record sections. A record whose
// type-specific payload fails to decode is skipped by resynchronizing
// the cursor to the record's declared end, which is known because the
// fixed prefix was already read. A record whose name or fixed prefix
// cannot be read aborts the section, keeping what was decoded so far.
func (m *Message) readOthers() error {
	m.didReadOthers = true
	n := int(m.NumAnswers) + int(m.NumAuthorities) + int(m.NumAdditionals)
	for range n {
		name, err := m.readName()
		if err != nil {
			return err
		}
		if len(m.data)-m.off < 10 {
			return fmt.Errorf("record prefix at %d is cut short: %w", m.off, ErrShortPacket)
		}
		rrtype := binary.BigEndian.Uint16(m.data[m.off+0:])
		class := binary.BigEndian.Uint16(m.data[m.off+2:])
		ttl := int32(binary.BigEndian.Uint32(m.data[m.off+4:]))
		rdlength := int(binary.BigEndian.Uint16(m.data[m.off+8:]))
		m.off += 10
		end := m.off + rdlength

		rec, err := m.readRecord(name, rrtype, class, ttl, rdlength)
		if err != nil {
			m.off = end
			m.logSkippedRecord(name, rrtype, err)
			continue
		}
		if rec != nil {
			m.answers = append(m.answers, rec)
		}
	}
	return nil
}

// logInvalidPacket reports a fatal decode error. The first time a given
// error text is seen the full context goes with it; repeats are logged
// bare, so a stream of identical malformed packets cannot flood the log.
func (m *Message) logInvalidPacket(err error) {
	if m.errlog.firstOccurrence(err.Error()) {
		m.logger.Debug("received invalid packet",
			"err", err, "source", m.source, "offset", m.off, "packet", m.data)
		return
	}
	m.logger.Debug("received invalid packet", "err", err)
}

// logSkippedRecord reports a record dropped by the recovery path, with
// the same first-occurrence deduplication as logInvalidPacket.
func (m *Message) logSkippedRecord(name string, rrtype uint16, err error) {
	if m.errlog.firstOccurrence(err.Error()) {
		m.logger.Debug("skipping unparsable record",
			"err", err, "name", name, "type", typeString(rrtype),
			"source", m.source, "offset", m.off, "packet", m.data)
		return
	}
	m.logger.Debug("skipping unparsable record",
		"err", err, "name", name, "type", typeString(rrtype))
}

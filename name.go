// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/miekg/dns/blob/v1.1.69/msg.go
//

package mdnscodec

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned while decoding a domain name. Every failure returned
// by the decoder matches one of the errors in this package under
// [errors.Is].
var (
	// ErrShortPacket means a read ran past the end of the packet.
	ErrShortPacket = errors.New("packet too short")

	// ErrLabelType means a name used one of the reserved label types.
	ErrLabelType = errors.New("unsupported label type")

	// ErrBadPointer means a compression pointer was out of range,
	// self-referential, or part of a loop.
	ErrBadPointer = errors.New("bad compression pointer")

	// ErrTooManyLabels means pointer chasing accumulated more labels
	// than a sane name can hold.
	ErrTooManyLabels = errors.New("too many labels in name")

	// ErrNameTooLong means the assembled name exceeds the maximum
	// presentation length.
	ErrNameTooLong = errors.New("name too long")
)

const (
	compressionHeaderLen  = 1
	compressionPointerLen = 2

	// maxLabels bounds the labels accumulated while chasing
	// compression pointers, so a chain of valid pointers cannot
	// expand without limit.
	maxLabels = 128

	// maxNameLength is the maximum length of a name in presentation
	// format, including the trailing dot.
	maxNameLength = 253
)

// readName reads a domain name at the cursor and advances the cursor
// past its encoding, which may be far shorter than the expanded name
// when compression pointers are involved. The result is absolute: the
// labels joined with dots plus a trailing dot.
func (m *Message) readName() (string, error) {
	var labels []string
	seen := make(map[int]struct{})
	start := m.off
	off, err := m.decodeLabelsAt(start, &labels, seen)
	if err != nil {
		return "", err
	}
	m.off = off
	m.nameCache[start] = labels
	name := strings.Join(labels, ".") + "."
	if len(name) > maxNameLength {
		return "", fmt.Errorf("name of %d octets at %d exceeds %d: %w",
			len(name), start, maxNameLength, ErrNameTooLong)
	}
	return name, nil
}

// decodeLabelsAt appends the labels encoded at off to labels and
// returns the offset just past their encoding. Compression targets
// already decoded for this message are reused through the name cache;
// seen holds the targets followed while assembling this one name, so a
// pointer cycle fails before the cache has a chance to hide it.
func (m *Message) decodeLabelsAt(off int, labels *[]string, seen map[int]struct{}) (int, error) {
	for off < len(m.data) {
		length := int(m.data[off])
		if length == 0 {
			return off + compressionHeaderLen, nil
		}

		if length < 0x40 {
			// Literal label. Decoding is lossy: invalid UTF-8 is
			// replaced rather than rejected, as mDNS names are
			// plain UTF-8 from sources we do not control.
			start := off + compressionHeaderLen
			if start+length > len(m.data) {
				return 0, fmt.Errorf("label at %d runs past the packet: %w", off, ErrShortPacket)
			}
			*labels = append(*labels, strings.ToValidUTF8(string(m.data[start:start+length]), "�"))
			off = start + length
			continue
		}

		if length < 0xC0 {
			// 0x40 and 0x80 label types are reserved.
			return 0, fmt.Errorf("label type %#x at %d: %w", length, off, ErrLabelType)
		}

		// Compression pointer: the low six bits of this byte and all
		// eight of the next form an absolute offset into the packet.
		if off+1 >= len(m.data) {
			return 0, fmt.Errorf("pointer at %d is cut short: %w", off, ErrShortPacket)
		}
		link := (length&0x3F)<<8 | int(m.data[off+1])
		if link > len(m.data) {
			return 0, fmt.Errorf("pointer at %d targets %d beyond the packet: %w", off, link, ErrBadPointer)
		}
		if link == off {
			return 0, fmt.Errorf("pointer at %d targets itself: %w", off, ErrBadPointer)
		}
		if _, ok := seen[link]; ok {
			return 0, fmt.Errorf("pointer at %d targets %d again: %w", off, link, ErrBadPointer)
		}
		linked := m.nameCache[link]
		if len(linked) == 0 {
			seen[link] = struct{}{}
			if _, err := m.decodeLabelsAt(link, &linked, seen); err != nil {
				return 0, err
			}
			m.nameCache[link] = linked
		}
		*labels = append(*labels, linked...)
		if len(*labels) > maxLabels {
			return 0, fmt.Errorf("over %d labels after pointer at %d: %w", maxLabels, off, ErrTooManyLabels)
		}
		// A pointer is always the last element of a name run.
		return off + compressionPointerLen, nil
	}
	return 0, fmt.Errorf("name at %d runs past the packet: %w", off, ErrShortPacket)
}

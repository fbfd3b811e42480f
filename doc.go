// SPDX-License-Identifier: GPL-3.0-or-later

// Package mdnscodec decodes incoming Multicast DNS messages.
//
// [Parse] and [*Parser.Parse] turn the raw bytes of a received datagram
// into a [*Message] holding the header, the question section, and the
// decoded resource records. The decoder is written for untrusted input:
// truncated buffers, compression-pointer loops and oversized names are
// rejected, and a single corrupt record is skipped without discarding
// the rest of the message.
//
// This package neither sends nor receives packets and does not
// implement a DNS serializer. For interoperability with code built on
// [github.com/miekg/dns], every decoded record converts to the
// equivalent RR type via [Record].
package mdnscodec

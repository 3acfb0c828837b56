// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package torrents computes the BitTorrent info-hash of torrent metadata.
package torrents

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/bencode"
)

// DecodeError reports torrent bytes that are not valid bencoding or lack
// an info dictionary.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string { return e.Reason }

type metaInfo struct {
	Info bencode.RawMessage `bencode:"info"`
}

// InfoHash returns the lowercase hex SHA-1 of the bencoded info
// dictionary. The digest covers the info value exactly as it appears in
// the input, which is what clients and trackers hash.
func InfoHash(data []byte) (string, error) {
	var meta metaInfo
	if err := bencode.DecodeBytes(data, &meta); err != nil {
		return "", &DecodeError{Reason: fmt.Sprintf("invalid torrent data: %v", err)}
	}
	if len(meta.Info) == 0 {
		return "", &DecodeError{Reason: "torrent data has no info dictionary"}
	}

	sum := sha1.Sum(meta.Info)
	return hex.EncodeToString(sum[:]), nil
}

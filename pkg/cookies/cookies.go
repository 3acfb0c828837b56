// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package cookies normalizes the cookie formats users paste into a source:
// a JSON object, a JSON array of {name,value} pairs (browser extension
// exports), or a raw "key=value; key2=value2" header string.
package cookies

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Jar is the normalized in-memory representation.
type Jar map[string]string

type namedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Parse accepts any of the supported wire formats and returns a Jar.
// Empty input yields an empty Jar.
func Parse(raw string) (Jar, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Jar{}, nil
	}

	var obj map[string]string
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		return Jar(obj), nil
	}

	var list []namedCookie
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		jar := make(Jar, len(list))
		for _, c := range list {
			jar[c.Name] = c.Value
		}
		return jar, nil
	}

	if looksLikeJSON(raw) {
		return nil, fmt.Errorf("unsupported cookie value %q", raw)
	}

	jar := make(Jar)
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		jar[name] = value
	}
	return jar, nil
}

func looksLikeJSON(raw string) bool {
	return strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[")
}

// Merge reconciles freshly observed cookies against the cookies a source
// already tracks. Only keys the source knows are refreshed, so transient
// response cookies do not accumulate. A source that tracks nothing adopts
// the observed set wholesale.
func Merge(known, observed Jar) Jar {
	if len(known) == 0 {
		return observed.Clone()
	}

	merged := known.Clone()
	for name, value := range observed {
		if _, ok := merged[name]; ok {
			merged[name] = value
		}
	}
	return merged
}

// Clone returns a shallow copy, never nil.
func (j Jar) Clone() Jar {
	c := make(Jar, len(j))
	for name, value := range j {
		c[name] = value
	}
	return c
}

// Encode serializes the jar as a JSON object for persistence. An empty
// jar encodes to the empty string to keep stored records tidy.
func (j Jar) Encode() string {
	if len(j) == 0 {
		return ""
	}
	data, err := json.Marshal(map[string]string(j))
	if err != nil {
		return ""
	}
	return string(data)
}

// Header renders the jar as a Cookie request header value with stable
// ordering.
func (j Jar) Header() string {
	names := make([]string, 0, len(j))
	for name := range j {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+j[name])
	}
	return strings.Join(pairs, "; ")
}

// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package torznab renders the indexer wire format: capability documents,
// error faults, and RSS search feeds carrying torznab attributes.
package torznab

import (
	"encoding/xml"
)

// Torznab api functions, dispatched through the t query parameter.
const (
	FuncCaps     = "caps"
	FuncSearch   = "search"
	FuncTVSearch = "tvsearch"
)

// Torznab fault codes.
const (
	CodeNoSuchFunction       = 202
	CodeFunctionNotAvailable = 203
)

const torznabNamespace = "http://torznab.com/schemas/2015/feed"

type searchCap struct {
	Available       string `xml:"available,attr"`
	SupportedParams string `xml:"supportedParams,attr"`
}

type searching struct {
	Search      searchCap `xml:"search"`
	TVSearch    searchCap `xml:"tv-search"`
	MovieSearch searchCap `xml:"movie-search"`
}

type subcategory struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

type category struct {
	ID      string        `xml:"id,attr"`
	Name    string        `xml:"name,attr"`
	Subcats []subcategory `xml:"subcat"`
}

type capsDoc struct {
	XMLName    xml.Name   `xml:"caps"`
	Searching  searching  `xml:"searching"`
	Categories []category `xml:"categories>category"`
}

// Caps renders the capability document: tv-search with tvdbid, season
// and ep parameters, under the standard TV categories.
func Caps() []byte {
	doc := capsDoc{
		Searching: searching{
			Search:      searchCap{Available: "yes", SupportedParams: "q"},
			TVSearch:    searchCap{Available: "yes", SupportedParams: "tvdbid,season,ep"},
			MovieSearch: searchCap{Available: "no", SupportedParams: "q"},
		},
		Categories: []category{
			{
				ID:   "5000",
				Name: "TV",
				Subcats: []subcategory{
					{ID: "5030", Name: "SD"},
					{ID: "5040", Name: "HD"},
				},
			},
		},
	}
	return render(doc)
}

type errorDoc struct {
	XMLName     xml.Name `xml:"error"`
	Code        int      `xml:"code,attr"`
	Description string   `xml:"description,attr"`
}

// Error renders a torznab fault document.
func Error(code int, description string) []byte {
	return render(errorDoc{Code: code, Description: description})
}

func render(doc any) []byte {
	out, err := xml.Marshal(doc)
	if err != nil {
		// all documents are built from plain structs; marshalling them
		// cannot fail at runtime
		panic(err)
	}
	return append([]byte(xml.Header), out...)
}

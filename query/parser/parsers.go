// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package parser

import (
	"strconv"
	"strings"

	"github.com/vektah/goparsify"
)

// repeatZeroOrMore matches zero or more parsers and returns the values as
// .Child[n]. An optional separator is consumed but not returned.
//
// This and repeatOneOrMore exist because the difference between Some & Many is
// not obvious from the name.
func repeatZeroOrMore(p goparsify.Parserish, sep ...goparsify.Parserish) goparsify.Parser {
	return goparsify.Some(p, sep...)
}

// repeatOneOrMore matches one or more parsers and returns the values as
// .Child[n]. An optional separator is consumed but not returned.
func repeatOneOrMore(p goparsify.Parserish, sep ...goparsify.Parserish) goparsify.Parser {
	return goparsify.Many(p, sep...)
}

// keyword matches the supplied word case-insensitively, refusing to match a
// prefix of a longer identifier (so "and" does not match "android").
func keyword(match string) goparsify.Parser {
	lenMatch := len(match)
	return goparsify.NewParser("i/"+match+"/", func(s *goparsify.State, r *goparsify.Result) {
		s.WS(s)
		in := s.Get()
		if len(in) < lenMatch || !strings.EqualFold(match, in[:lenMatch]) {
			s.ErrorHere(match)
			return
		}
		if len(in) > lenMatch && isIdentChar(in[lenMatch]) {
			s.ErrorHere(match)
			return
		}
		s.Advance(lenMatch)
		r.Token = in[:lenMatch]
	})
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// reservedWords are the clause keywords a bare candidate alias must not
// swallow.
var reservedWords = map[string]bool{
	"select": true, "delete": true, "from": true, "as": true,
	"where": true, "order": true, "by": true, "range": true,
}

// aliasWord matches an identifier that is not a reserved clause keyword.
func aliasWord() goparsify.Parser {
	return goparsify.NewParser("alias", func(s *goparsify.State, r *goparsify.Result) {
		s.WS(s)
		in := s.Get()
		end := 0
		for end < len(in) && isIdentChar(in[end]) {
			end++
		}
		if end == 0 || reservedWords[strings.ToLower(in[:end])] {
			s.ErrorHere("alias")
			return
		}
		s.Advance(end)
		r.Token = in[:end]
		r.Result = r.Token
	})
}

// int64Literal parses a possibly signed base-10 int64.
func int64Literal() goparsify.Parser {
	return goparsify.NewParser("int64", func(s *goparsify.State, r *goparsify.Result) {
		s.WS(s)
		maxPos := s.Pos
		inLen := len(s.Input)
		if maxPos < inLen && (s.Input[maxPos] == '-' || s.Input[maxPos] == '+') {
			maxPos++
		}
		for maxPos < inLen && s.Input[maxPos] >= '0' && s.Input[maxPos] <= '9' {
			maxPos++
		}
		if maxPos == s.Pos {
			s.ErrorHere("number")
			return
		}
		var err error
		r.Result, err = strconv.ParseInt(s.Input[s.Pos:maxPos], 10, 64)
		if err != nil {
			s.ErrorHere("number")
			return
		}
		s.Pos = maxPos
	})
}

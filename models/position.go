// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Position is one of the fixed roles contested in every election
type Position string

const (
	PositionPresident     Position = "president"
	PositionVicePresident Position = "vice_president"
	PositionSecretary     Position = "secretary"
)

// AllPositions returns every position in ballot order
func AllPositions() []Position {
	return []Position{PositionPresident, PositionVicePresident, PositionSecretary}
}

// ParsePosition converts a wire value to a Position
func ParsePosition(s string) (Position, error) {
	p := Position(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown position %q", s)
	}
	return p, nil
}

func (p Position) Valid() bool {
	switch p {
	case PositionPresident, PositionVicePresident, PositionSecretary:
		return true
	}
	return false
}

// Order is the ballot order of the position, used for sorting
func (p Position) Order() int {
	switch p {
	case PositionPresident:
		return 0
	case PositionVicePresident:
		return 1
	case PositionSecretary:
		return 2
	}
	return 3
}

// Title returns the display name of the position
func (p Position) Title() string {
	switch p {
	case PositionPresident:
		return "President"
	case PositionVicePresident:
		return "Vice President"
	case PositionSecretary:
		return "Secretary"
	}
	return string(p)
}

func (p Position) String() string {
	return string(p)
}

func (p *Position) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePosition(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package eventprocessor

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/circulation/internal/circulation"
)

var (
	errMissingID   = errors.New("event id is required")
	errMissingType = errors.New("event type is required")
)

func validate(e *circulation.Event) error {
	switch {
	case e.ID == "":
		return errMissingID
	case e.Type == "":
		return errMissingType
	}
	return nil
}

// MarshalEvent encodes an event for the wire.
func MarshalEvent(e *circulation.Event) ([]byte, error) {
	if err := validate(e); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// UnmarshalEvent decodes an event published by this package.
func UnmarshalEvent(data []byte) (*circulation.Event, error) {
	var e circulation.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &e, nil
}

// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

// Package validation wraps go-playground/validator with a shared instance
// and readable messages. It validates both API request bodies and decoded
// vendor responses.
//
//	type availability struct {
//	    ID       string `json:"id" validate:"required"`
//	    Accounts []account `json:"accounts" validate:"dive"`
//	}
//
//	if err := validation.Struct(&doc); err != nil {
//	    return err // *validation.Error
//	}
//
// Besides the built-in tags, "formatname" accepts vendor format names such
// as "ebook-epub-adobe".
package validation

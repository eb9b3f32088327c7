/*
	Research
	Copyright (c) 2024 The Research Authors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package research

import (
	"fmt"
	"strings"
)

// The error kinds below form a closed taxonomy so callers can decide
// per kind whether to abort or continue, instead of matching message
// strings. Credential, transport, and unknown-provider errors abort
// the current command; envelope and item-decode errors are contained
// where they occur and only logged.

// CredentialError indicates a missing or invalid provider credential.
// Fatal to the current command.
type CredentialError struct {
	Provider string
	Missing  string // which credential, e.g. "access token"
}

func (e CredentialError) Error() string {
	return fmt.Sprintf("%s %s not found; run `%s auth` first", e.Provider, e.Missing, e.Provider)
}

// TransportError indicates a network-level failure reaching a remote
// provider. Fatal to the current fetch run; items upserted before the
// failure remain persisted.
type TransportError struct {
	Provider string
	Op       string
	Err      error
}

func (e TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e TransportError) Unwrap() error { return e.Err }

// EnvelopeError is a top-level error response from the remote API.
// Recoverable: the fetch loop logs it and continues.
type EnvelopeError struct {
	Message string
}

func (e EnvelopeError) Error() string {
	return "provider returned error envelope: " + e.Message
}

// ItemDecodeError is a failure to decode a single wire record.
// Recoverable: the item is dropped and the page continues.
type ItemDecodeError struct {
	Key    string // wire key of the record, if known
	Fields []string
	Err    error
}

func (e ItemDecodeError) Error() string {
	msg := "decoding item"
	if e.Key != "" {
		msg += " " + e.Key
	}
	if len(e.Fields) > 0 {
		msg += " (fields: " + strings.Join(e.Fields, ", ") + ")"
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e ItemDecodeError) Unwrap() error { return e.Err }

// UnknownProviderError indicates a sync was requested for a provider
// name with no row in the providers table. Fatal, since there is no
// provider ID to scope inserted rows to.
type UnknownProviderError struct {
	Name string
}

func (e UnknownProviderError) Error() string {
	return "unknown provider: " + e.Name
}

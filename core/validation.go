// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"encoding/json"
	"fmt"
)

// ValidatePayload validates a Payload and returns its encoded size in bytes.
//
// Validation rules:
//   - Payload must not be nil or empty
//   - Payload must encode to JSON (no channels, funcs, NaN, cyclic values)
//
// The returned size is the length of the JSON encoding and is used as the
// batch size estimate.
func ValidatePayload(payload Payload) (int, error) {
	if len(payload) == 0 {
		return 0, fmt.Errorf("%w: %w", ErrInvalidPayload, ErrEmptyPayload)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("%w: %w: %v", ErrInvalidPayload, ErrNotSerializable, err)
	}
	return len(encoded), nil
}

// ValidatePayloads checks every payload in a batch, stopping at the first failure.
func ValidatePayloads(payloads []Payload) error {
	for i, p := range payloads {
		if _, err := ValidatePayload(p); err != nil {
			return fmt.Errorf("payload %d: %w", i, err)
		}
	}
	return nil
}

// ValidateColumns validates the column names for tabular ingestion.
func ValidateColumns(columns []string) error {
	if len(columns) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTabularData, ErrEmptyColumns)
	}
	return nil
}

// RowToPayload zips a row with column names into a Payload.
func RowToPayload(row []any, columns []string) (Payload, error) {
	if len(row) != len(columns) {
		return nil, fmt.Errorf("%w: %w: got %d values for %d columns",
			ErrInvalidTabularData, ErrRowWidth, len(row), len(columns))
	}
	payload := make(Payload, len(columns))
	for i, col := range columns {
		payload[col] = row[i]
	}
	return payload, nil
}

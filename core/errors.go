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
	"errors"
	"fmt"
)

// Domain validation errors
var (
	// ErrInvalidPayload indicates a payload failed validation.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrEmptyPayload indicates the payload has no fields.
	ErrEmptyPayload = errors.New("payload cannot be empty")

	// ErrNotSerializable indicates the payload cannot be encoded to JSON.
	ErrNotSerializable = errors.New("payload is not serializable")

	// ErrInvalidTabularData indicates rows or column names passed for tabular ingestion are unusable.
	ErrInvalidTabularData = errors.New("invalid tabular data")

	// ErrEmptyColumns indicates no column names were given.
	ErrEmptyColumns = errors.New("column names cannot be empty")

	// ErrNilRows indicates the row sequence is nil.
	ErrNilRows = errors.New("rows must be iterable")

	// ErrRowWidth indicates a row does not match the column count.
	ErrRowWidth = errors.New("row width does not match column names")
)

// Category classifies a failure by who is expected to resolve it.
type Category int

const (
	// CategoryUnclassified is used when no classification is available.
	CategoryUnclassified Category = iota
	// CategoryUser covers bad input data or job configuration supplied by the job author.
	CategoryUser
	// CategoryConfig covers a misconfigured pipeline or sink.
	CategoryConfig
	// CategoryPlatform covers sink or infrastructure failures.
	CategoryPlatform
)

// Categories lists every category in reporting precedence order, most actionable first.
var Categories = []Category{CategoryUser, CategoryConfig, CategoryPlatform, CategoryUnclassified}

func (c Category) String() string {
	switch c {
	case CategoryUser:
		return "user_error"
	case CategoryConfig:
		return "config_error"
	case CategoryPlatform:
		return "platform_error"
	default:
		return "unclassified"
	}
}

// ResolvableError attaches a Category to an error.
type ResolvableError struct {
	Category Category
	Err      error
}

func (e *ResolvableError) Error() string {
	if e.Err == nil {
		return e.Category.String()
	}
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *ResolvableError) Unwrap() error { return e.Err }

// UserError marks err as resolvable by the job author.
func UserError(err error) error {
	return &ResolvableError{Category: CategoryUser, Err: err}
}

// ConfigError marks err as a pipeline or sink misconfiguration.
func ConfigError(err error) error {
	return &ResolvableError{Category: CategoryConfig, Err: err}
}

// PlatformError marks err as an infrastructure failure.
func PlatformError(err error) error {
	return &ResolvableError{Category: CategoryPlatform, Err: err}
}

// Classify returns the category of the outermost ResolvableError in err's chain.
// Validation errors count as user errors.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnclassified
	}
	var re *ResolvableError
	if errors.As(err, &re) {
		return re.Category
	}
	if errors.Is(err, ErrInvalidPayload) || errors.Is(err, ErrInvalidTabularData) {
		return CategoryUser
	}
	return CategoryUnclassified
}

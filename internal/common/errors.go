// Copyright 2024 Backuptool Authors
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

package common

import (
	"errors"
	"strings"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrIO                     = errors.New("I/O error")
	ErrInvalidPath            = errors.New("invalid path")
	ErrUnsupportedFileType    = errors.New("unsupported file type")
	ErrStorageUnavailable     = errors.New("storage unavailable")
	ErrTransactionConflict    = errors.New("transaction conflict")
	ErrIntegrityViolation     = errors.New("integrity violation")
	ErrSnapshotCreationFailed = errors.New("snapshot creation failed")
)

// ClassifyStorageError maps raw driver errors onto the storage taxonomy.
// Errors that are already classified, or unknown, are returned unchanged.
func ClassifyStorageError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransactionConflict) || errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "database table is locked"),
		strings.Contains(msg, "sqlite_busy"),
		strings.Contains(msg, "busy"):
		return errors.Join(ErrTransactionConflict, err)
	case strings.Contains(msg, "database is closed"),
		strings.Contains(msg, "unable to open database"),
		strings.Contains(msg, "disk i/o error"):
		return errors.Join(ErrStorageUnavailable, err)
	}
	return err
}

// IsRetryable reports whether an operation that failed with err can be
// safely re-run from the start.
func IsRetryable(err error) bool {
	return errors.Is(ClassifyStorageError(err), ErrTransactionConflict)
}

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

package backup

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/DevHarmeet/backuptool/internal/common"
	"github.com/DevHarmeet/backuptool/internal/storage"
)

// VerifyReport lists integrity problems found in a store.
type VerifyReport struct {
	Dangling     []storage.DanglingEntry // entries whose blob is missing
	Orphans      []string                // blobs no entry references
	Corrupt      []string                // blobs whose content no longer hashes to their digest
	BlobsChecked int
}

// OK reports whether no problems were found.
func (r *VerifyReport) OK() bool {
	return len(r.Dangling) == 0 && len(r.Orphans) == 0 && len(r.Corrupt) == 0
}

// Verify checks that every entry has a blob and every blob has an entry.
// With checkContent, each blob is also re-hashed. The report is always
// returned; the error wraps common.ErrIntegrityViolation if it is not OK.
func (m *Manager) Verify(ctx context.Context, checkContent bool) (*VerifyReport, error) {
	report := &VerifyReport{}

	dangling, err := m.db.ListDanglingEntries(ctx)
	if err != nil {
		return report, common.ClassifyStorageError(err)
	}
	report.Dangling = dangling

	orphans, err := m.db.ListOrphanDigestsWith(m.db.DB, ctx)
	if err != nil {
		return report, common.ClassifyStorageError(err)
	}
	report.Orphans = orphans

	if checkContent {
		digests, err := m.db.ListDigests(ctx)
		if err != nil {
			return report, common.ClassifyStorageError(err)
		}
		for _, digest := range digests {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			data, err := m.db.GetBlob(ctx, digest)
			if err != nil {
				return report, common.ClassifyStorageError(err)
			}
			report.BlobsChecked++
			if Digest(data) != digest {
				report.Corrupt = append(report.Corrupt, digest)
			}
		}
	}

	if !report.OK() {
		m.log.WithFields(log.Fields{
			"dangling": len(report.Dangling),
			"orphans":  len(report.Orphans),
			"corrupt":  len(report.Corrupt),
		}).Warn("integrity check failed")
		return report, fmt.Errorf("%w: %d dangling entries, %d orphan blobs, %d corrupt blobs",
			common.ErrIntegrityViolation, len(report.Dangling), len(report.Orphans), len(report.Corrupt))
	}
	return report, nil
}

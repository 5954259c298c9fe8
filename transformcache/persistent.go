/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package transformcache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"path/filepath"

	"github.com/peterbourgon/diskv"
)

// DiskStore is the persistent tier: an on-disk blob store with atomic
// per-key writes (diskv writes into a temp directory and renames into
// place) and silent discard on checksum mismatch (§4.2). Blobs on disk are
// never evicted by size; the size budget only bounds diskv's in-memory
// copy of recently used blobs. Content-addressed rather than HTTP-semantic, so no
// RFC 7234 staleness rules apply — only the blob store itself is needed.
type DiskStore struct {
	d *diskv.Diskv
}

// record is the on-disk envelope: the entry plus a checksum of its JSON
// encoding, so a torn or corrupted write is detected and discarded rather
// than returned to a caller.
type record struct {
	Checksum string
	Entry    Entry
}

// NewDiskStore opens (creating if absent) a persistent cache rooted at
// baseDir. maxBytes caps diskv's in-memory cache of blob contents; it does
// not limit or evict the files kept on disk.
func NewDiskStore(baseDir string, maxBytes uint64) *DiskStore {
	d := diskv.New(diskv.Options{
		BasePath:     baseDir,
		TempDir:      filepath.Join(baseDir, ".tmp"),
		Transform:    flatTransform,
		CacheSizeMax: maxBytes,
	})
	return &DiskStore{d: d}
}

// flatTransform keeps the store flat (one file per key) since keys are
// already content-hash hex strings with no natural directory structure.
func flatTransform(key string) []string {
	return []string{}
}

func (s *DiskStore) Get(key Key) (Entry, bool) {
	raw, err := s.d.Read(string(key))
	if err != nil {
		return Entry{}, false
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		_ = s.d.Erase(string(key))
		return Entry{}, false
	}
	if rec.Checksum != checksumOf(rec.Entry) {
		_ = s.d.Erase(string(key))
		return Entry{}, false
	}
	return rec.Entry, true
}

func (s *DiskStore) Put(key Key, entry Entry) error {
	rec := record{Checksum: checksumOf(entry), Entry: entry}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.d.Write(string(key), raw)
}

func (s *DiskStore) Delete(key Key) error {
	return s.d.Erase(string(key))
}

// Reset discards the entire persistent tier (the --reset-cache flag, §10.1).
func (s *DiskStore) Reset() error {
	return s.d.EraseAll()
}

func checksumOf(entry Entry) string {
	h := sha1.New()
	h.Write([]byte(entry.Code))
	h.Write([]byte(entry.Map))
	for _, dep := range entry.Dependencies {
		h.Write([]byte(dep))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Package artifact seals raw regulator payloads for storage: zstd
// compression, base64 text encoding, and a SHA-256 digest of the raw bytes
// that is verified on every read.
package artifact

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"rrfiler/internal/filing/models"
)

// ErrIntegrity is returned when stored content no longer matches its digest.
var ErrIntegrity = errors.New("artifact integrity check failed")

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithZeroFrames(true))
	decoder, _ = zstd.NewReader(nil)
)

// Seal builds an immutable artifact from raw bytes.
func Seal(kind models.ArtifactKind, attempt int, filename string, raw []byte, now time.Time) (models.Artifact, error) {
	if !kind.IsValid() {
		return models.Artifact{}, fmt.Errorf("unknown artifact kind %q", kind)
	}
	compressed := encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2))
	return models.Artifact{
		ID:        uuid.New(),
		Kind:      kind,
		Attempt:   attempt,
		Filename:  filename,
		Content:   base64.StdEncoding.EncodeToString(compressed),
		SHA256:    Digest(raw),
		Size:      int64(len(raw)),
		CreatedAt: now,
	}, nil
}

// Open returns the raw bytes of a sealed artifact after checking size and
// digest.
func Open(a models.Artifact) ([]byte, error) {
	compressed, err := base64.StdEncoding.DecodeString(a.Content)
	if err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", a.ID, err)
	}
	raw, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress artifact %s: %w", a.ID, err)
	}
	if int64(len(raw)) != a.Size || Digest(raw) != a.SHA256 {
		return nil, fmt.Errorf("%w: artifact %s", ErrIntegrity, a.ID)
	}
	return raw, nil
}

// Digest is the hex SHA-256 of raw.
func Digest(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Same reports whether a holds exactly raw, without decompressing.
func Same(a models.Artifact, raw []byte) bool {
	return a.Size == int64(len(raw)) && a.SHA256 == Digest(raw)
}

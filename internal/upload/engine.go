// Package upload batches sanitized sessions into size-bounded requests and
// merges the per-batch results.
package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/DevArk-AI/devark/pkg/models"
)

const (
	// targetBatchBytes is the wire budget per request.
	targetBatchBytes = 500 * 1024
	// overheadBuffer reserves headroom for the request envelope.
	overheadBuffer = 0.20
)

// effectiveCap is the usable session-JSON budget per batch.
var effectiveCap = int(float64(targetBatchBytes) * (1 - overheadBuffer))

// BatchPayload is one POST /cli/sessions body. Sessions holds the
// pre-serialized session array so the bytes measured for batching are the
// bytes hashed and sent.
type BatchPayload struct {
	Sessions      json.RawMessage `json:"sessions"`
	Checksum      string          `json:"checksum"`
	TotalSessions int             `json:"totalSessions"`
	BatchNumber   int             `json:"batchNumber"`
	TotalBatches  int             `json:"totalBatches"`
}

// Sender posts one batch and decodes the backend's result.
type Sender interface {
	UploadBatch(ctx context.Context, payload BatchPayload) (*models.UploadResult, error)
}

// ProgressFunc is invoked after each batch with the cumulative uploaded
// count and the total session count.
type ProgressFunc func(uploaded, total int)

// Engine uploads sessions through a Sender.
type Engine struct {
	sender Sender
}

// NewEngine creates an upload engine.
func NewEngine(sender Sender) *Engine {
	return &Engine{sender: sender}
}

// UploadSessions batches and uploads the sessions. Empty input returns a
// zero-valued success result without touching the network. A failed batch
// aborts the run and discards results merged so far.
func (e *Engine) UploadSessions(ctx context.Context, sessions []models.SanitizedSession, onProgress ProgressFunc) (*models.UploadResult, error) {
	if len(sessions) == 0 {
		return &models.UploadResult{Success: true}, nil
	}

	// Serialize each session once; the same bytes drive the size estimate,
	// the request body and the checksum.
	serialized := make([][]byte, 0, len(sessions))
	for i, s := range sessions {
		raw, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("serialize session %d: %w", i, err)
		}
		serialized = append(serialized, raw)
	}

	batches := partition(serialized, effectiveCap)
	log.Debug().Int("sessions", len(sessions)).Int("batches", len(batches)).Msg("Uploading sessions")

	merged := &models.UploadResult{Success: true, SessionsProcessed: len(sessions)}
	uploaded := 0
	for i, batch := range batches {
		body := joinArray(batch)
		payload := BatchPayload{
			Sessions:      body,
			Checksum:      checksum(body),
			TotalSessions: len(sessions),
			BatchNumber:   i + 1,
			TotalBatches:  len(batches),
		}

		result, err := e.sender.UploadBatch(ctx, payload)
		if err != nil {
			return nil, fmt.Errorf("upload batch %d/%d: %w", i+1, len(batches), err)
		}

		uploaded += len(batch)
		mergeResult(merged, result, i == 0)
		if onProgress != nil {
			onProgress(uploaded, len(sessions))
		}
	}
	return merged, nil
}

// partition groups sessions into batches whose estimated size stays within
// the limit. An oversized session occupies a batch alone rather than looping.
func partition(sessions [][]byte, limit int) [][][]byte {
	var batches [][][]byte
	var current [][]byte
	running := 0
	for _, s := range sessions {
		size := len(s)
		if len(current) > 0 && running+size > limit {
			batches = append(batches, current)
			current = nil
			running = 0
		}
		current = append(current, s)
		running += size
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// joinArray assembles a JSON array from pre-serialized elements.
func joinArray(batch [][]byte) json.RawMessage {
	size := 2
	for _, s := range batch {
		size += len(s) + 1
	}
	out := make([]byte, 0, size)
	out = append(out, '[')
	for i, s := range batch {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, s...)
	}
	return append(out, ']')
}

func checksum(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// mergeResult folds one batch result into the merged total. Success is
// ANDed, counts are summed, the preview comes from the first batch and the
// streak from the last.
func mergeResult(merged, batch *models.UploadResult, first bool) {
	merged.Success = merged.Success && batch.Success
	merged.Created += batch.Created
	merged.Duplicates += batch.Duplicates
	if first {
		merged.AnalysisPreview = batch.AnalysisPreview
	}
	merged.Streak = batch.Streak
	if batch.PointsEarned != nil {
		if merged.PointsEarned == nil {
			merged.PointsEarned = &models.PointsEarned{}
		}
		merged.PointsEarned.Volume += batch.PointsEarned.Volume
		merged.PointsEarned.Total += batch.PointsEarned.Total
		if batch.PointsEarned.Streak > merged.PointsEarned.Streak {
			merged.PointsEarned.Streak = batch.PointsEarned.Streak
		}
		if batch.PointsEarned.Share > merged.PointsEarned.Share {
			merged.PointsEarned.Share = batch.PointsEarned.Share
		}
	}
}

// Entrascan
// Copyright (C) 2025 Gravitational, Inc.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gravitational/trace"
	"golang.org/x/sync/errgroup"

	"github.com/gravitational/entrascan/lib/defaults"
	"github.com/gravitational/entrascan/lib/msgraph"
)

// GraphBatcher is the part of the Graph client the batch pipeline calls.
type GraphBatcher interface {
	Batch(ctx context.Context, requests []msgraph.BatchRequest) (*msgraph.BatchResponse, error)
}

// Chunk is one bounded slice of a larger request list, submitted as a single
// $batch call, together with the mapping from request IDs back to the
// caller's per-request context.
type Chunk[C any] struct {
	Requests []msgraph.BatchRequest

	contexts map[string]C
}

func newChunk[C any]() Chunk[C] {
	return Chunk[C]{contexts: make(map[string]C)}
}

// PlanBatches splits entities into consecutive chunks of at most chunkSize
// requests. build is called once per entity and returns the request to issue
// (its ID is assigned here) plus the context remembered for correlation;
// entities for which build returns false are skipped without failing the
// chunk. Request IDs are unique within a chunk and namespaced by the chunk
// index, so chunks may execute concurrently.
func PlanBatches[T, C any](entities []T, chunkSize int, prefix string, build func(T) (msgraph.BatchRequest, C, bool)) []Chunk[C] {
	if chunkSize <= 0 || chunkSize > msgraph.MaxBatchRequests {
		chunkSize = defaults.BatchChunkSize
	}

	var chunks []Chunk[C]
	chunk := newChunk[C]()
	for _, entity := range entities {
		req, reqCtx, ok := build(entity)
		if !ok {
			continue
		}
		if len(chunk.Requests) == chunkSize {
			chunks = append(chunks, chunk)
			chunk = newChunk[C]()
		}
		req.ID = fmt.Sprintf("%s%d-%d", prefix, len(chunks)+1, len(chunk.Requests)+1)
		chunk.Requests = append(chunk.Requests, req)
		chunk.contexts[req.ID] = reqCtx
	}
	if len(chunk.Requests) > 0 {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// ChunkRequests splits requests that already carry unique IDs into chunks of
// at most chunkSize, carving the relevant slice of contexts out for each
// chunk. Used for detail rounds where IDs are assigned at discovery time.
func ChunkRequests[C any](requests []msgraph.BatchRequest, contexts map[string]C, chunkSize int) []Chunk[C] {
	if chunkSize <= 0 || chunkSize > msgraph.MaxBatchRequests {
		chunkSize = defaults.BatchChunkSize
	}

	var chunks []Chunk[C]
	for start := 0; start < len(requests); start += chunkSize {
		end := min(start+chunkSize, len(requests))
		chunk := newChunk[C]()
		chunk.Requests = append(chunk.Requests, requests[start:end]...)
		for _, req := range chunk.Requests {
			if reqCtx, ok := contexts[req.ID]; ok {
				chunk.contexts[req.ID] = reqCtx
			}
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// BatchOutcome is the correlated result of a single sub-request. Status is
// zero when no individual response was received at all; OK is true only when
// a response arrived with a 2xx status.
type BatchOutcome[C any] struct {
	RequestID string
	Context   C
	OK        bool
	Status    int
	Body      json.RawMessage
	Err       error
}

// executeChunk sends one chunk as a $batch call. A transport or decode
// failure is logged and surfaces as a nil response; the correlator turns nil
// into per-request failure outcomes so no context is lost.
func executeChunk[C any](ctx context.Context, client GraphBatcher, log *slog.Logger, label string, chunk Chunk[C]) *msgraph.BatchResponse {
	if len(chunk.Requests) == 0 {
		return nil
	}
	resp, err := client.Batch(ctx, chunk.Requests)
	if err != nil {
		log.WarnContext(ctx, "Batch call failed",
			"label", label,
			"requests", len(chunk.Requests),
			"error", err,
		)
		return nil
	}
	return resp
}

// correlateChunk maps composite response entries back to their requests.
//
// A nil or empty response yields one failure outcome per submitted request,
// in submission order. Otherwise outcomes follow the provider's response
// order; entries whose ID matches no submitted request become failure
// outcomes with a zero context rather than being dropped.
func correlateChunk[C any](ctx context.Context, log *slog.Logger, resp *msgraph.BatchResponse, chunk Chunk[C]) []BatchOutcome[C] {
	if resp == nil || len(resp.Responses) == 0 {
		outcomes := make([]BatchOutcome[C], 0, len(chunk.Requests))
		for _, req := range chunk.Requests {
			outcomes = append(outcomes, BatchOutcome[C]{
				RequestID: req.ID,
				Context:   chunk.contexts[req.ID],
				Err:       trace.ConnectionProblem(nil, "empty or invalid batch response received"),
			})
		}
		return outcomes
	}

	outcomes := make([]BatchOutcome[C], 0, len(resp.Responses))
	for _, item := range resp.Responses {
		outcome := BatchOutcome[C]{
			RequestID: item.ID,
			Status:    item.Status,
			Body:      item.Body,
		}
		reqCtx, ok := chunk.contexts[item.ID]
		if !ok {
			log.WarnContext(ctx, "Batch response carries an unknown request ID",
				"request_id", item.ID,
				"status", item.Status,
			)
			outcome.Err = trace.NotFound("no request matches batch response id %q", item.ID)
			outcomes = append(outcomes, outcome)
			continue
		}
		outcome.Context = reqCtx
		if item.Status >= http.StatusOK && item.Status < http.StatusMultipleChoices {
			outcome.OK = true
		} else {
			outcome.Err = trace.Errorf("request %q failed with status %d", item.ID, item.Status)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// RunBatches executes all chunks and returns every correlated outcome.
// At most concurrency $batch calls are in flight at a time; outcomes keep
// chunk plan order between chunks and response order within a chunk. A chunk
// that fails outright still contributes one failure outcome per submitted
// request.
func RunBatches[C any](ctx context.Context, client GraphBatcher, log *slog.Logger, label string, chunks []Chunk[C], concurrency int) []BatchOutcome[C] {
	if concurrency <= 0 {
		concurrency = defaults.BatchConcurrency
	}

	perChunk := make([][]BatchOutcome[C], len(chunks))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for i, chunk := range chunks {
		group.Go(func() error {
			resp := executeChunk(groupCtx, client, log, label, chunk)
			perChunk[i] = correlateChunk(groupCtx, log, resp, chunk)
			return nil
		})
	}
	// Workers never return errors; failures are already folded into outcomes.
	_ = group.Wait()

	var outcomes []BatchOutcome[C]
	for _, chunkOutcomes := range perChunk {
		outcomes = append(outcomes, chunkOutcomes...)
	}
	return outcomes
}

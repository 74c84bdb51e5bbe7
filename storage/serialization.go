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


package storage

import (
	"fmt"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/datajobs/core"
)

var (
	// CheckpointMUS is the mus serializer for core.Checkpoint.
	CheckpointMUS mus.Serializer[core.Checkpoint] = checkpointSer{}

	// StoredBatchMUS is the mus serializer for core.StoredBatch.
	StoredBatchMUS mus.Serializer[core.StoredBatch] = storedBatchSer{}

	stringSliceMUS = ord.NewSliceSer[string](ord.String)
)

type checkpointSer struct{}

func (checkpointSer) Marshal(v core.Checkpoint, bs []byte) (n int) {
	n = ord.String.Marshal(v.CollectionID, bs)
	n += ord.String.Marshal(v.Table, bs[n:])
	n += varint.Int64.Marshal(v.Payloads, bs[n:])
	n += varint.Int64.Marshal(v.Batches, bs[n:])
	n += raw.TimeUnixMicroUTC.Marshal(v.UpdatedAt, bs[n:])
	return
}

func (checkpointSer) Unmarshal(bs []byte) (v core.Checkpoint, n int, err error) {
	var n1 int
	v.CollectionID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Table, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Payloads, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Batches, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = raw.TimeUnixMicroUTC.Unmarshal(bs[n:])
	n += n1
	return
}

func (checkpointSer) Size(v core.Checkpoint) (size int) {
	size = ord.String.Size(v.CollectionID)
	size += ord.String.Size(v.Table)
	size += varint.Int64.Size(v.Payloads)
	size += varint.Int64.Size(v.Batches)
	return size + raw.TimeUnixMicroUTC.Size(v.UpdatedAt)
}

func (checkpointSer) Skip(bs []byte) (n int, err error) {
	_, n, err = checkpointSer{}.Unmarshal(bs)
	return
}

type storedBatchSer struct{}

func (storedBatchSer) Marshal(v core.StoredBatch, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(v.Id), bs)
	n += ord.String.Marshal(v.Target, bs[n:])
	n += ord.String.Marshal(v.Table, bs[n:])
	n += ord.String.Marshal(v.CollectionID, bs[n:])
	n += stringSliceMUS.Marshal(v.Payloads, bs[n:])
	n += raw.TimeUnixMicroUTC.Marshal(v.InsertedAt, bs[n:])
	return
}

func (storedBatchSer) Unmarshal(bs []byte) (v core.StoredBatch, n int, err error) {
	var (
		id uint64
		n1 int
	)
	id, n, err = varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Id = core.ID(id)
	v.Target, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Table, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CollectionID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Payloads, n1, err = stringSliceMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.InsertedAt, n1, err = raw.TimeUnixMicroUTC.Unmarshal(bs[n:])
	n += n1
	return
}

func (storedBatchSer) Size(v core.StoredBatch) (size int) {
	size = varint.Uint64.Size(uint64(v.Id))
	size += ord.String.Size(v.Target)
	size += ord.String.Size(v.Table)
	size += ord.String.Size(v.CollectionID)
	size += stringSliceMUS.Size(v.Payloads)
	return size + raw.TimeUnixMicroUTC.Size(v.InsertedAt)
}

func (storedBatchSer) Skip(bs []byte) (n int, err error) {
	_, n, err = storedBatchSer{}.Unmarshal(bs)
	return
}

// MarshalCheckpoint serializes a Checkpoint to bytes.
func MarshalCheckpoint(checkpoint *core.Checkpoint) []byte {
	buf := make([]byte, CheckpointMUS.Size(*checkpoint))
	CheckpointMUS.Marshal(*checkpoint, buf)
	return buf
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	checkpoint, _, err := CheckpointMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &checkpoint, nil
}

// MarshalStoredBatch serializes a StoredBatch to bytes.
func MarshalStoredBatch(batch *core.StoredBatch) []byte {
	buf := make([]byte, StoredBatchMUS.Size(*batch))
	StoredBatchMUS.Marshal(*batch, buf)
	return buf
}

// UnmarshalStoredBatch deserializes a StoredBatch from bytes.
func UnmarshalStoredBatch(data []byte) (*core.StoredBatch, error) {
	batch, _, err := StoredBatchMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &batch, nil
}

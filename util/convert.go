package util

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack"

	"github.com/loamdb/loam/storage/disk"
)

// ToByteSlice marshals obj into a page-sized buffer.
func ToByteSlice[T any](obj T) ([]byte, error) {
	res := make([]byte, disk.PAGE_SIZE)

	data, err := msgpack.Marshal(obj)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling page")
	}
	if len(data) > disk.PAGE_SIZE {
		return nil, errors.Errorf("page overflow: %d bytes", len(data))
	}
	copy(res, data)

	return res, nil
}

// ToStruct materializes a page struct from frame bytes.
func ToStruct[T any](data []byte) (T, error) {
	var res T

	if err := msgpack.Unmarshal(data, &res); err != nil {
		return res, errors.Wrap(err, "unmarshalling page")
	}

	return res, nil
}

package imgix

import (
	"sync"

	"github.com/sqids/sqids-go"
)

var (
	sq   *sqids.Sqids
	once sync.Once
)

func getSqids() *sqids.Sqids {
	once.Do(func() {
		var err error
		sq, err = sqids.New(sqids.Options{
			Alphabet:  "Xq3GmT7vKc1ZpRb9WdLf5NhJy2sA8uEo4rCkV6tBgYxMa0iQzUwPnSDlFjOeHI",
			MinLength: 6,
		})
		if err != nil {
			panic("sqids init failed: " + err.Error())
		}
	})
	return sq
}

// EncodeSourceID turns a database id into the public source handle.
func EncodeSourceID(id uint64) (string, error) {
	return getSqids().Encode([]uint64{id})
}

// DecodeSourceID reverses EncodeSourceID. ok is false for handles that were
// not produced by EncodeSourceID.
func DecodeSourceID(handle string) (uint64, bool) {
	ids := getSqids().Decode(handle)
	if len(ids) != 1 {
		return 0, false
	}
	back, err := EncodeSourceID(ids[0])
	if err != nil || back != handle {
		return 0, false
	}
	return ids[0], true
}

// Package registry maps codec names to codec implementations.
package registry

import (
	"fmt"
	"sort"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/vertti/parpack/internal/codec"
	"github.com/vertti/parpack/internal/codec/gzipcodec"
	"github.com/vertti/parpack/internal/codec/lz4codec"
	"github.com/vertti/parpack/internal/codec/noopcodec"
	"github.com/vertti/parpack/internal/codec/snappycodec"
	"github.com/vertti/parpack/internal/codec/zstdcodec"
)

// Default is the codec used when none is named.
const Default = "zstd"

var constructors = map[string]func() (codec.Codec, error){
	"zstd":   func() (codec.Codec, error) { return zstdcodec.New(zstd.SpeedDefault) },
	"gzip":   func() (codec.Codec, error) { return gzipcodec.New(gzip.DefaultCompression) },
	"lz4":    func() (codec.Codec, error) { return lz4codec.New(), nil },
	"snappy": func() (codec.Codec, error) { return snappycodec.New(), nil },
	"none":   func() (codec.Codec, error) { return noopcodec.New(), nil },
}

// Lookup returns a new codec for name. An empty name selects Default.
func Lookup(name string) (codec.Codec, error) {
	if name == "" {
		name = Default
	}
	newCodec, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown codec %q (available: %v)", name, Names())
	}
	return newCodec()
}

// Names returns the registered codec names in sorted order.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

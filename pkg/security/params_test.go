package security

import (
	"testing"

	"github.com/angelmondragon/shopfront-backend/pkg/config"
)

func TestParamsFromConfigClampsOutOfRangeValues(t *testing.T) {
	params := paramsFromConfig(config.PasswordConfig{
		ArgonMemoryKB:    1,
		ArgonTime:        99,
		ArgonParallelism: 0,
		ArgonSaltLen:     1000,
		ArgonKeyLen:      4,
	})
	if params.Memory != 8 || params.Time != 10 || params.Parallelism != 1 {
		t.Fatalf("unexpected clamped params %+v", params)
	}
	if params.SaltLen != 64 || params.KeyLen != 16 {
		t.Fatalf("unexpected clamped lengths %+v", params)
	}
}

func TestNewHasherUsesClampedParams(t *testing.T) {
	cfg := config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 2, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}
	if got, want := NewHasher(cfg).Params(), paramsFromConfig(cfg); got != want {
		t.Fatalf("hasher params %+v, want %+v", got, want)
	}
}

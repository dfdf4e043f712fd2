package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestInitRedisEmptyURL(t *testing.T) {
	client, err := InitRedis(context.Background(), "")
	if err != nil || client != nil {
		t.Fatalf("expected nil client without URL, got %v %v", client, err)
	}
}

func TestInitRedisConnects(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := InitRedis(context.Background(), "redis://"+mr.Addr()+"/2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer client.Close()
	if client.Options().DB != 2 {
		t.Fatalf("expected db 2, got %d", client.Options().DB)
	}
}

func TestInitRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	if _, err := InitRedis(context.Background(), addr); err == nil {
		t.Fatal("expected ping error")
	}
}

func TestOptionsBareAddr(t *testing.T) {
	opts, err := Options("localhost:6379")
	if err != nil || opts.Addr != "localhost:6379" {
		t.Fatalf("unexpected options %+v %v", opts, err)
	}
	if _, err := Options("redis://:bad:port:x"); err == nil {
		t.Fatal("expected parse error")
	}
}
